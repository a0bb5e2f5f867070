package port

// Conn is a live client connection owned by this worker process.
type Conn interface {
	Send(msg any) error
	Close() error
}
