package diag

// State is a step of a single switch attempt:
//
//	Searching -> Opened -> CommandSent -> AwaitingAck -> Acknowledged | Failed
//
// Failed may follow any state.
type State uint8

const (
	StateSearching State = iota
	StateOpened
	StateCommandSent
	StateAwaitingAck
	StateAcknowledged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateOpened:
		return "opened"
	case StateCommandSent:
		return "command-sent"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateAcknowledged || s == StateFailed
}
