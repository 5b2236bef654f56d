// Package errdata attaches typed metadata to errors, keeping the error's
// identity intact. An error can carry any number of attachments of distinct
// types; errors.Is and errors.As behave as though the attachments were absent.
package errdata

import (
	"errors"
	"log/slog"
)

// Attached is an error carrying one piece of typed metadata.
type Attached[T any] struct {
	Data T
	err  error
}

// Attach adds data to an error. Attaching to nil yields nil.
func Attach[T any](data T, err error) error {
	if err == nil {
		return nil
	}
	return Attached[T]{Data: data, err: err}
}

// Error returns the message of the underlying error; the attachment
// contributes nothing to the text.
func (e Attached[T]) Error() string {
	return e.err.Error()
}

// Unwrap exposes the underlying error for errors.Is and errors.As.
func (e Attached[T]) Unwrap() error {
	return e.err
}

// LogValue implements slog.LogValuer so the attachment renders as its data.
// The error message itself is emitted separately by the log converter.
func (e Attached[T]) LogValue() slog.Value {
	if lv, ok := any(e.Data).(slog.LogValuer); ok {
		return lv.LogValue()
	}
	return slog.AnyValue(e.Data)
}

// Lookup retrieves data of type T from anywhere in the error tree.
// When the same type was attached more than once, the outermost wins.
func Lookup[T any](err error) (T, bool) {
	var attached Attached[T]
	ok := errors.As(err, &attached)
	return attached.Data, ok
}

// Unjoin splits an error produced by errors.Join into its direct children.
// Any other non-nil error comes back as a single-element slice.
func Unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// Flatten returns every leaf error in a joined error tree, recursing through
// nested joins. A wrapper around a join flattens to the join's leaves.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var leaves []error
		for _, child := range joined.Unwrap() {
			leaves = append(leaves, Flatten(child)...)
		}
		return leaves
	}

	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		if leaves := Flatten(unwrapped); len(leaves) > 1 {
			return leaves
		}
	}

	return []error{err}
}
