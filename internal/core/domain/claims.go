package domain

// Claims are carried by a streaming token presented on the control endpoint.
type Claims struct {
	SessionID     SessionID
	ParticipantID ParticipantID
	Role          Role
}
