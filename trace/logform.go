package trace

import (
	"log/slog"
	"strconv"
)

const (
	frameSourceKey   = "source"
	frameLineKey     = "line"
	frameFunctionKey = "func"
	frameOwnerKey    = "owner"
)

// LogForm renders the trace attached to an error as plain maps for
// structured logging. Returns nil when the error carries no trace.
func LogForm(err error) any {
	tr := FromError(err)
	if tr == nil {
		return nil
	}
	return tr.logForm()
}

func (t Trace) logForm() []map[string]string {
	out := make([]map[string]string, 0, len(t))
	for _, frame := range t {
		entry := map[string]string{
			frameSourceKey:   frame.File,
			frameLineKey:     strconv.Itoa(frame.Line),
			frameFunctionKey: frame.Function,
		}
		if frame.Owner != "" {
			entry[frameOwnerKey] = frame.Owner
		}
		out = append(out, entry)
	}
	return out
}

// LogValue implements slog.LogValuer.
func (t Trace) LogValue() slog.Value {
	return slog.AnyValue(t.logForm())
}
