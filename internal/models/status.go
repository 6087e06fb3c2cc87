package models

// ConnectionStatus reflects the outcome of the most recent health check or
// send attempt against the server.
type ConnectionStatus int

const (
	StatusUnknown ConnectionStatus = iota
	StatusConnected
	StatusError
)

// String returns a human-readable form for logs and observers.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
