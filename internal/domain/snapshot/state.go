package snapshot

// ConnState is the lifecycle of one stream connection: Idle, then Open once
// the transport is ready, then Closed. Closed is terminal; a new connection
// starts again at Idle.
type ConnState int

const (
	StateIdle ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanReceive reports whether messages may still be applied in state s.
func (s ConnState) CanReceive() bool {
	return s == StateOpen
}
