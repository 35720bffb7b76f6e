package monitor

// State is the lifecycle of one armed token.
type State int

const (
	// Idle has no token and no timers.
	Idle State = iota
	// Armed has warning, expiry and recurring check timers scheduled.
	Armed
	// Warned has emitted the expiring-soon notice for the armed token.
	Warned
	// Expired has run the expiry path for the armed token.
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Warned:
		return "warned"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}
