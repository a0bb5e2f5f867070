package redis

import "github.com/Wyydra/huddle/internal/core/domain"

const (
	sessionKeyPrefix  = "huddles:"
	sessionKeyPattern = sessionKeyPrefix + "*"
	lifecycleChannel  = "events:huddles"
)

func sessionKey(id domain.SessionID) string {
	return sessionKeyPrefix + string(id)
}

func membersKey(id domain.SessionID) string {
	return "huddle:" + string(id) + ":members"
}

func participantKey(id domain.ParticipantID) string {
	return "participant:" + string(id)
}

func sessionChannel(id domain.SessionID) string {
	return "events:huddle:" + string(id)
}

func membersChannel(id domain.SessionID) string {
	return "events:huddle:" + string(id) + ":members"
}
