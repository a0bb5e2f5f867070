package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("huddle not found or expired")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("participant already exists")

	ErrAlreadyTracking      = errors.New("tracking is already enabled")
	ErrNotDirectlyConnected = errors.New("participant is not connected to this worker")
	ErrAlreadyConnected     = errors.New("participant already has a live connection")

	// ErrProtocolViolation marks an internally sourced event carrying an
	// unknown operation. It is a programming error, never recoverable.
	ErrProtocolViolation = errors.New("protocol contract violation")

	ErrCloseRequested = errors.New("close requested by client")
	ErrStreamClosed   = errors.New("event stream closed")
	ErrMediaServer    = errors.New("media server request failed")
)
