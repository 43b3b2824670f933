package relay

// Mode is the relay's operating state. Exactly one mode holds at any
// instant; all transitions are owned by the Controller's run loop.
type Mode int

const (
	ModeIdle Mode = iota
	ModeReceiving
	ModeTransmitting
	ModeAnnouncing
)

// String returns the mode name used in status snapshots and logs.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeReceiving:
		return "receiving"
	case ModeTransmitting:
		return "transmitting"
	case ModeAnnouncing:
		return "announcing"
	default:
		return "unknown"
	}
}
