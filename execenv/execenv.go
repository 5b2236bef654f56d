// Package execenv answers one question: is this process driven from a
// command line? Reporters use the answer to decide whether a diagnostic
// report may be written to the output stream or belongs to the logger only.
package execenv

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

// ForceEnvVar overrides terminal detection when set to any value
// strconv.ParseBool accepts. This lets operators force command-line
// behavior in wrappers and CI pipelines where the streams are pipes.
const ForceEnvVar = "FAULTLINE_CLI"

// Probe reports the execution context of the process.
type Probe interface {
	// CommandLine is true when the process talks to an interactive
	// command line rather than serving requests.
	CommandLine() bool
}

type terminalProbe struct{}

// Detect returns a Probe backed by terminal detection on stdout and
// stderr, honoring ForceEnvVar when present.
func Detect() Probe {
	return terminalProbe{}
}

func (terminalProbe) CommandLine() bool {
	if forced, err := strconv.ParseBool(os.Getenv(ForceEnvVar)); err == nil {
		return forced
	}
	return isTerminal(os.Stdout.Fd()) && isTerminal(os.Stderr.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type staticProbe bool

// Static returns a Probe with a fixed answer. Servers pass Static(false);
// tests pass whichever side they exercise.
func Static(v bool) Probe {
	return staticProbe(v)
}

func (p staticProbe) CommandLine() bool {
	return bool(p)
}
