package solver

import (
	"fmt"
)

// ActionKind tags an Action's payload. The original C++ source packs
// fold/all-in/check-call sentinels and fractional bet sizes into a single
// float field (negative constants for the sentinels); this module uses a
// proper tagged union instead, per the redesign note in the spec this
// package implements.
type ActionKind uint8

const (
	ActionUndefined ActionKind = iota
	ActionFold
	ActionCheckCall
	ActionAllIn
	ActionBet // payload: Fraction, a positive pot fraction
)

// Action is a single decision: a kind plus, for ActionBet, a pot fraction.
type Action struct {
	Kind     ActionKind
	Fraction float32 // only meaningful when Kind == ActionBet; must be > 0
}

var (
	Fold      = Action{Kind: ActionFold}
	CheckCall = Action{Kind: ActionCheckCall}
	AllIn     = Action{Kind: ActionAllIn}
)

// Bet constructs a fractional pot-bet action. f must be > 0.
func Bet(f float32) Action {
	return Action{Kind: ActionBet, Fraction: f}
}

// String renders the action the way the original source's Action::to_string
// does: "f" for fold, "cc" for check/call, "allin" for all-in, and the
// fraction as a percentage for bets.
func (a Action) String() string {
	switch a.Kind {
	case ActionFold:
		return "f"
	case ActionCheckCall:
		return "cc"
	case ActionAllIn:
		return "allin"
	case ActionBet:
		return fmt.Sprintf("b%.0f%%", a.Fraction*100)
	default:
		return "undefined"
	}
}

// ActionHistory is an ordered, immutable-by-convention sequence of actions.
// It is the key into StrategyStorage and is compared/hashed structurally.
type ActionHistory struct {
	actions []Action
}

// NewActionHistory builds a history from a sequence of actions.
func NewActionHistory(actions ...Action) ActionHistory {
	return ActionHistory{actions: append([]Action(nil), actions...)}
}

// Push returns a new history with action appended. The receiver is not
// mutated: PokerState.Apply relies on this to keep histories immutable.
func (h ActionHistory) Push(a Action) ActionHistory {
	next := make([]Action, len(h.actions)+1)
	copy(next, h.actions)
	next[len(h.actions)] = a
	return ActionHistory{actions: next}
}

// Get returns the i-th action in the history.
func (h ActionHistory) Get(i int) Action {
	return h.actions[i]
}

// Len returns the number of actions recorded.
func (h ActionHistory) Len() int {
	return len(h.actions)
}

// Slice returns the sub-history [start:end). end == -1 means "to the end",
// mirroring ActionHistory::slice in the original source (used to print
// histories relative to a trainer's initial state).
func (h ActionHistory) Slice(start, end int) ActionHistory {
	if end < 0 {
		end = len(h.actions)
	}
	return ActionHistory{actions: append([]Action(nil), h.actions[start:end]...)}
}

// Equal reports structural equality.
func (h ActionHistory) Equal(other ActionHistory) bool {
	if len(h.actions) != len(other.actions) {
		return false
	}
	for i, a := range h.actions {
		if a != other.actions[i] {
			return false
		}
	}
	return true
}

// String renders the full history as a sequence of action tokens.
func (h ActionHistory) String() string {
	s := ""
	for i, a := range h.actions {
		if i > 0 {
			s += "-"
		}
		s += a.String()
	}
	return s
}

// Key returns a stable map key for this history, used by StrategyStorage.
// A string key (rather than a hand-rolled hash combine, as the original's
// std::hash<ActionHistory> does via boost::hash_combine) keeps Go's builtin
// map machinery exact and collision-free at the cost of building the string
// on every call; StrategyStorage calls Key on every Index and Lookup.
func (h ActionHistory) Key() string {
	return h.String()
}
