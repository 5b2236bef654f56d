package trace

import (
	"errors"
	"sync/atomic"

	"github.com/faultline-labs/faultline/errdata"
)

// depth of stack to ignore so callers of WrapError don't see the wrapping itself
const wrapStackDepth = 4

// Disabled turns WrapError into a pass-through when set. Useful on hot
// paths where capture cost matters more than diagnostics.
var Disabled atomic.Bool

// WrapError attaches the current call stack to an error. An error that
// already carries a trace is returned untouched, so wrapping at every level
// of a call chain keeps the innermost capture. Joined errors are wrapped
// child by child.
func WrapError(err error) error {
	if Disabled.Load() || err == nil {
		return err
	}

	if children := errdata.Unjoin(err); len(children) > 1 {
		wrapped := make([]error, len(children))
		for i, child := range children {
			wrapped[i] = WrapError(child)
		}
		return errors.Join(wrapped...)
	}

	return wrapSingle(err)
}

func wrapSingle(err error) error {
	if _, ok := errdata.Lookup[Trace](err); !ok {
		return errdata.Attach(Capture(wrapStackDepth, true), err)
	}
	return err
}

// FromError returns the Trace attached to an error, or nil.
func FromError(err error) Trace {
	tr, ok := errdata.Lookup[Trace](err)
	if !ok {
		return nil
	}
	return tr
}
