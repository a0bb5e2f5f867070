package domain

// ControlState is advisory bookkeeping for a control connection. No message
// is rejected because of the current state.
type ControlState int

const (
	StateAccepted ControlState = iota
	StateHandshakeSent
	StateAwaitingTransport
	StateTransportConnected
)

func (s ControlState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshakeSent:
		return "handshake_sent"
	case StateAwaitingTransport:
		return "awaiting_transport"
	case StateTransportConnected:
		return "transport_connected"
	default:
		return "unknown"
	}
}
