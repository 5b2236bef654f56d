package report

import (
	"context"
	"errors"
	"reflect"

	"github.com/faultline-labs/faultline/errdata"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/trace"
)

const panicKind = "panic"

// HandleError reports an error as a fault. The kind is the dynamic type of
// the root cause ("panic" for panic-classed errors), the frames come from
// the trace attached to the error, and the report class from the error
// class. A nil error is a no-op.
func (r *Reporter) HandleError(ctx context.Context, err error) (Disposition, error) {
	if err == nil {
		return Disposition{}, nil
	}

	class := errclass.Of(err)
	return r.handle(ctx, FaultFromError(err, class), trace.FromError(err), class)
}

// FaultFromError summarizes an error as a Fault. The file and line are
// taken from the head of the attached trace when one exists.
func FaultFromError(err error, class errclass.Class) Fault {
	fault := Fault{
		Kind:    kindOf(err, class),
		Message: err.Error(),
	}
	if frames := trace.FromError(err); len(frames) > 0 {
		fault.File = frames[0].File
		fault.Line = frames[0].Line
	}
	return fault
}

func kindOf(err error, class errclass.Class) string {
	if class == errclass.Panic {
		return panicKind
	}

	t := reflect.TypeOf(rootCause(err))
	if t == nil {
		return "error"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// rootCause follows the cause chain to its deepest error, taking the first
// branch of any join.
func rootCause(err error) error {
	cause := err
	for {
		if children := errdata.Unjoin(cause); len(children) > 1 {
			cause = children[0]
			continue
		}
		next := errors.Unwrap(cause)
		if next == nil {
			return cause
		}
		cause = next
	}
}
