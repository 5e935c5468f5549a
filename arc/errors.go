package arc

import "fmt"

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindAllocation      ErrKind = iota // backend could not satisfy a request
	ErrKindMemory                         // bookkeeping violation (free while referenced, foreign pointer)
	ErrKindNullDereference                // dereference of an empty handle
	ErrKindState                          // invalid operation for current state (closed, released)
	ErrKindType                           // typed access does not match the stored value
	ErrKindLeak                           // blocks still outstanding at Close
)

var kindNames = [...]string{
	ErrKindAllocation:      "allocation failure",
	ErrKindMemory:          "memory error",
	ErrKindNullDereference: "null dereference",
	ErrKindState:           "invalid state",
	ErrKindType:            "type mismatch",
	ErrKindLeak:            "leak",
}

func (k ErrKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrKind(%d)", int(k))
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return "arc: " + e.Msg + ": " + e.Err.Error()
	}
	return "arc: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so the sentinels
// below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && t.Kind == e.Kind
}

// Sentinels, one per kind, for use with errors.Is.
var (
	ErrAllocationFailure = &Error{Kind: ErrKindAllocation, Msg: "allocation failure"}
	ErrMemory            = &Error{Kind: ErrKindMemory, Msg: "memory error"}
	ErrNullDereference   = &Error{Kind: ErrKindNullDereference, Msg: "null pointer dereference"}
	ErrState             = &Error{Kind: ErrKindState, Msg: "invalid state"}
	ErrTypeMismatch      = &Error{Kind: ErrKindType, Msg: "type mismatch"}
	ErrLeak              = &Error{Kind: ErrKindLeak, Msg: "outstanding allocations"}
)

func errorf(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}
