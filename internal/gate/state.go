package gate

// State is a step of the gate state machine.
type State int

const (
	Idle State = iota
	CheckingCache
	FetchingConfig
	WaitingForTokens
	CallingBackend
	Resolved
	Fallback
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CheckingCache:
		return "CheckingCache"
	case FetchingConfig:
		return "FetchingConfig"
	case WaitingForTokens:
		return "WaitingForTokens"
	case CallingBackend:
		return "CallingBackend"
	case Resolved:
		return "Resolved"
	case Fallback:
		return "Fallback"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state ends the cold start.
func (s State) Terminal() bool { return s == Resolved || s == Fallback }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is the top-level experience chosen by the gate.
type Outcome string

const (
	OutcomeWeb    Outcome = "web"
	OutcomeNative Outcome = "native"
)

// Decision is the result of one cold start.
type Decision struct {
	Outcome   Outcome `json:"outcome"`
	URL       string  `json:"url,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	FromCache bool    `json:"from_cache"`
	SessionID string  `json:"session_id"`
	State     State   `json:"state"`
}
