// Package report composes fault reports and routes them to their
// destinations: a structured logger, an output stream, and any number
// of delivery sinks.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Fault is the summary of a failure: what kind, what it said, and where.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

// Header renders the single-line summary used at the top of a report.
func (f Fault) Header() string {
	return fmt.Sprintf("%s: %s in file %s on line %d", f.Kind, f.Message, f.File, f.Line)
}

// signature identifies recurrences of the same fault site.
func (f Fault) signature() string {
	return fmt.Sprintf("%s|%s|%d", f.Kind, f.File, f.Line)
}

// Report is a fully composed fault report, ready for delivery.
type Report struct {
	ID         string    `json:"id"`
	Service    string    `json:"service"`
	Version    string    `json:"version,omitempty"`
	Class      string    `json:"class"`
	Fault      Fault     `json:"fault"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LogValue implements slog.LogValuer. The full text is deliberately left
// out; the logger receives it as the record message.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("kind", r.Fault.Kind),
		slog.String("source", r.Fault.File),
		slog.Int("line", r.Fault.Line),
	)
}

// Disposition describes what Handle did with a fault.
type Disposition struct {
	// Handled is false only when the reporter declined the fault outright.
	Handled bool
	// Logged is true when the report was emitted to the configured logger.
	Logged bool
	// Output is true when the report text was written to the output stream.
	Output bool
	// Suppressed is true when a duplicate fault was dropped by dedup.
	Suppressed bool
}

// Sink delivers finished reports somewhere durable or visible.
// Implementations own their delivery semantics, including any retries.
type Sink interface {
	Ship(ctx context.Context, report Report) error
}
