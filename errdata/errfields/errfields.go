// Package errfields carries structured log fields on errors so that the
// site discovering a failure can record what it knew, and the site logging
// the failure gets all of it without threading values through signatures.
package errfields

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/faultline-labs/faultline/errdata"
)

// Fields is the set of log attributes accumulated on an error.
type Fields map[string]slog.Value

// Attrs returns the fields as a sorted slice of slog.Attr.
func (f Fields) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(f))
	for _, key := range slices.Sorted(maps.Keys(f)) {
		attrs = append(attrs, slog.Attr{Key: key, Value: f[key]})
	}
	return attrs
}

// LogValue implements slog.LogValuer, rendering the fields as a flat group.
func (f Fields) LogValue() slog.Value {
	if len(f) == 0 {
		return slog.Value{}
	}
	return slog.GroupValue(f.Attrs()...)
}

// Add attaches log attributes to an error. Existing keys are replaced
// (last entry wins). A joined error has the attributes applied to each
// direct child so no branch loses its context.
func Add(err error, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}

	if children := errdata.Unjoin(err); len(children) > 1 {
		annotated := make([]error, len(children))
		for i, child := range children {
			annotated[i] = Add(child, attrs...)
		}
		return errors.Join(annotated...)
	}

	merged := maps.Clone(Get(err))
	if merged == nil {
		merged = make(Fields, len(attrs))
	}
	for _, attr := range attrs {
		merged[attr.Key] = attr.Value
	}
	return errdata.Attach(merged, err)
}

// Get returns the newest Fields attached to the error, or nil.
func Get(err error) Fields {
	if err == nil {
		return nil
	}
	if fields, ok := errdata.Lookup[Fields](err); ok {
		return fields
	}
	return nil
}
