package log

import (
	"log/slog"
	"strings"
)

// sanitizeKey replaces dots with underscores to prevent nested object interpretation.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// sanitizeAttrs recursively sanitizes keys in slog.Attr structures.
func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	sanitized := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		sanitized[i] = sanitizeAttr(attr)
	}
	return sanitized
}

// sanitizeAttr sanitizes a single slog.Attr, including nested groups.
func sanitizeAttr(attr slog.Attr) slog.Attr {
	safeKey := sanitizeKey(attr.Key)

	if attr.Value.Kind() == slog.KindGroup {
		return slog.GroupAttrs(safeKey, sanitizeAttrs(attr.Value.Group())...)
	}

	return slog.Attr{Key: safeKey, Value: attr.Value}
}
