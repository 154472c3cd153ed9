package constants

// DocState is the terminal state of one document's traversal.
type DocState string

// Stable values, written into run reports.
const (
	StateDiscardedDuplicate   DocState = "DISCARDED_DUPLICATE"
	StateDiscardedUnsupported DocState = "DISCARDED_UNSUPPORTED"
	StateDiscardedTiny        DocState = "DISCARDED_TINY"
	StateDiscardedEmpty       DocState = "DISCARDED_EMPTY"
	StateRouted               DocState = "ROUTED"  // handed to the scanned or redirect queue
	StateEmitted              DocState = "EMITTED" // artifact written
	StateDiscardFailed        DocState = "DISCARD_FAILED"
)

// States lists every terminal state in report order.
var States = []DocState{
	StateEmitted,
	StateRouted,
	StateDiscardedEmpty,
	StateDiscardedDuplicate,
	StateDiscardedUnsupported,
	StateDiscardedTiny,
	StateDiscardFailed,
}

// IsDiscard reports whether s ends a document without an artifact or handoff.
func (s DocState) IsDiscard() bool {
	switch s {
	case StateDiscardedDuplicate, StateDiscardedUnsupported, StateDiscardedTiny, StateDiscardedEmpty, StateDiscardFailed:
		return true
	}
	return false
}
