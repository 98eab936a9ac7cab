package entity

// Kind tags a Tristate value
type Kind uint8

const (
	// Unknown carries no value
	Unknown Kind = iota
	// Optimistic is a locally assumed value awaiting server confirmation
	Optimistic
	// Confirmed is a value read back from the server
	Confirmed
)

func (k Kind) String() string {
	switch k {
	case Optimistic:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Tristate is a boolean that may be unknown, assumed, or confirmed
type Tristate struct {
	Kind  Kind
	Value bool
}

// UnknownState returns a Tristate with no value
func UnknownState() Tristate {
	return Tristate{Kind: Unknown}
}

// OptimisticState returns an assumed value
func OptimisticState(v bool) Tristate {
	return Tristate{Kind: Optimistic, Value: v}
}

// ConfirmedState returns a server-confirmed value
func ConfirmedState(v bool) Tristate {
	return Tristate{Kind: Confirmed, Value: v}
}

// Display resolves the value to show: any Optimistic value wins, then any
// Confirmed value, then def.
func Display(def bool, states ...Tristate) bool {
	for _, s := range states {
		if s.Kind == Optimistic {
			return s.Value
		}
	}
	for _, s := range states {
		if s.Kind == Confirmed {
			return s.Value
		}
	}
	return def
}
