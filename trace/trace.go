// Package trace captures call stacks as frames suitable for diagnostic
// reports: each frame carries the enclosing type (when there is one), the
// function name, the source location, and optionally the argument values a
// producer chose to record.
package trace

import (
	"regexp"
	"runtime"
	"strings"
)

const (
	maxFrames     = 50
	runtimePrefix = "runtime."
	testingPrefix = "testing."
)

// match the filename of the go runtime package
// eg `/pkg/mod/golang.org/toolchain@v0.0.1-go1.25.0.linux-amd64/src/runtime/panic.go`
var runtimeRegex = regexp.MustCompile(`go[^/]*/src/runtime/[^.]+\.go`)

// match the filename of the go testing package
var testingRegex = regexp.MustCompile(`go[^/]*/src/testing/[^.]+\.go`)

// anonymous functions, init funcs, and defer/go wrappers have generated name segments
var generatedNameRegex = regexp.MustCompile(`^(func\d+(\.\d+)*|\d+|deferwrap\d+|gowrap\d+)$`)

// Frame is one level of a call stack.
//
// Owner is the receiver type for methods ("pkg.(*Client)" or "pkg.Client")
// and empty for package-level functions. Args holds whatever values the
// producer of the frame recorded for it; the runtime capture in this package
// never fills them in, but frames built from other sources may.
type Frame struct {
	Owner    string `json:"owner,omitempty"`
	Function string `json:"func"`
	File     string `json:"source"`
	Line     int    `json:"line"`
	Args     []any  `json:"-"`
}

// Trace is a call stack ordered innermost first: index 0 is the frame
// closest to the failure.
type Trace []Frame

// Capture records the current call stack.
// skipFrames is the number of frames to skip, where 1 makes Capture itself
// the first frame and 2 starts at its caller. trimRuntime removes frames
// belonging to the Go runtime and testing machinery.
func Capture(skipFrames int, trimRuntime bool) Trace {
	var captured Trace

	pc := make([]uintptr, maxFrames)
	n := runtime.Callers(skipFrames, pc)
	pc = pc[:n]

	frames := runtime.CallersFrames(pc)
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		if trimRuntime {
			if strings.HasPrefix(frame.Function, runtimePrefix) && runtimeRegex.MatchString(frame.File) {
				continue
			} else if strings.HasPrefix(frame.Function, testingPrefix) && testingRegex.MatchString(frame.File) {
				continue
			}
		}
		owner, name := splitSymbol(frame.Function)
		captured = append(captured, Frame{
			Owner:    owner,
			Function: name,
			File:     frame.File,
			Line:     frame.Line,
		})
	}

	return captured
}

// splitSymbol separates a runtime symbol such as
// "github.com/org/mod/pkg.(*Client).Do" into owner "pkg.(*Client)" and
// name "Do". Package-level functions keep their package qualifier as the
// name with no owner. Closures and init funcs are left whole because their
// generated segments do not name a receiver.
func splitSymbol(symbol string) (owner, name string) {
	base := symbol
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	pkgDot := strings.IndexByte(base, '.')
	if pkgDot < 0 {
		return "", base
	}
	rest := base[pkgDot+1:]

	last := lastDotOutsideBrackets(rest)
	if last < 0 {
		return "", base
	}

	name = rest[last+1:]
	if generatedNameRegex.MatchString(name) {
		return "", base
	}
	if prefix := rest[:last]; lastDotOutsideBrackets(prefix) >= 0 && !strings.ContainsRune(prefix, '(') {
		// more than one plain segment before the name, eg a function nested
		// inside another function; no single receiver to report
		return "", base
	}
	return base[:pkgDot+1] + rest[:last], name
}

// lastDotOutsideBrackets finds the rightmost '.' that is not inside the
// type-parameter brackets of a generic symbol.
func lastDotOutsideBrackets(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ']':
			depth++
		case '[':
			depth--
		case '.':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
