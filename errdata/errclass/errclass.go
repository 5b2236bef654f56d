// Package errclass assigns a severity class to errors so that callers can
// decide between retrying, giving up, and escalating without inspecting
// concrete error types.
package errclass

import (
	"log/slog"

	"github.com/faultline-labs/faultline/errdata"
)

// Class is an ordered severity. Higher values are more severe; the numeric
// values are otherwise arbitrary and leave room for future classes.
type Class int

const (
	// Nil is the class of a nil error.
	Nil Class = -1
	// Unknown is the class of any error that was never marked.
	Unknown Class = 0
	// Transient errors may succeed if the operation is retried.
	Transient Class = 30
	// Persistent errors will keep failing no matter how often they are retried.
	Persistent Class = 60
	// Panic errors were recovered from a panic.
	Panic Class = 90
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case Nil:
		return "nil"
	case Transient:
		return "transient"
	case Persistent:
		return "persistent"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

// LogValue implements slog.LogValuer.
func (c Class) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Mark attaches a class to an error. Marking nil yields nil.
// Marking an already-marked error overrides the earlier class, including the
// aggregate class of a joined error.
func Mark(err error, class Class) error {
	if err == nil {
		return nil
	}
	return errdata.Attach(class, err)
}

// Of reports the class of an error. A joined error takes the highest class
// among its children unless the join itself was explicitly marked. Errors
// that never received a mark are Unknown.
func Of(err error) Class {
	if err == nil {
		return Nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		highest := Nil
		for _, child := range joined.Unwrap() {
			if c := Of(child); c > highest {
				highest = c
			}
		}
		if highest == Nil {
			// a live error is never Nil, even if its children were marked so
			return Unknown
		}
		return highest
	}

	if class, ok := errdata.Lookup[Class](err); ok {
		return class
	}
	return Unknown
}
