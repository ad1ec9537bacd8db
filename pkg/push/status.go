package push

// Status is the observable connection state of a Stream.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusClosed // terminal: ClosingDown received, Close called or context ended
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}
