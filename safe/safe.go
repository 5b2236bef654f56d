// Package safe converts panics into classed errors so that a failing code
// path produces a report instead of taking the process down.
package safe

import (
	"fmt"

	"github.com/faultline-labs/faultline/errdata"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/trace"
)

// depth of stack to ignore so the captured trace starts at the panic site
// rather than inside the deferred recovery function.
const panicStackDepth = 3

// Run calls f, recovering any panic into an error that carries the panic
// value, a trace of where it happened, and the Panic class.
// WARNING: a panic in a goroutine spawned by f cannot be recovered here;
// such goroutines need their own guard (see safe/errgroup).
func Run(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			recovered := fmt.Errorf("panic: %v", r)
			recovered = errdata.Attach(trace.Capture(panicStackDepth, true), recovered)
			err = errclass.Mark(recovered, errclass.Panic)
		}
	}()

	return f()
}
