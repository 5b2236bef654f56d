package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/rs/zerolog"
	slogcommon "github.com/samber/slog-common"
	slogzerolog "github.com/samber/slog-zerolog/v2"

	"github.com/faultline-labs/faultline/buildinfo"
	"github.com/faultline-labs/faultline/errdata"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/log/identity"
	"github.com/faultline-labs/faultline/trace"
)

const (
	ErrorKey        = "error"
	SourceKey       = "source"
	TraceKey        = "trace"
	ClassKey        = "class"
	ErrorContextKey = "error_context"
)

// ErrNilWriter is returned by NewLogger when configured with a nil writer.
var ErrNilWriter = errors.New("log writer must not be nil")

var logLevel = &slog.LevelVar{}

// SetLogLevel adjusts the level of every logger created by NewLogger,
// including those already handed out. An empty level is a no-op.
func SetLogLevel(level string) error {
	if level != "" {
		return logLevel.UnmarshalText([]byte(level))
	}
	return nil
}

// ErrAttr is a helper for logging error values.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

// NewTestLogger creates a new logger for testing.
// NOTE: Since this logger uses the testing t.Log method,
// it will only log when the test fails. Additionally,
// it will cause a panic if the logger is called after the
// test has completed. This can be helpful for finding race conditions.
func NewTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	log := slogt.New(t, slogt.JSON()).With(slog.String("test", t.Name()))
	return log
}

type options struct {
	serviceName string
	instanceID  string
	version     *buildinfo.Information
	writer      io.Writer
}

type Option func(options *options)

// WithServiceName overrides the service name reported on every log line.
func WithServiceName(name string) Option {
	return func(options *options) {
		options.serviceName = name
	}
}

// WithInstanceID overrides the unique instance id reported on every log line.
func WithInstanceID(id string) Option {
	return func(options *options) {
		options.instanceID = id
	}
}

// WithVersion sets the build information reported on every log line.
// Pass nil to omit build information entirely.
func WithVersion(info *buildinfo.Information) Option {
	return func(options *options) {
		options.version = info
	}
}

// WithWriter redirects log output away from stdout.
func WithWriter(w io.Writer) Option {
	return func(options *options) {
		options.writer = w
	}
}

// NewLogger creates a new slog logger backed by zerolog with some standard defaults.
func NewLogger(opts ...Option) (*slog.Logger, error) {
	name, id := identity.WhoAmI()
	options := options{
		serviceName: name,
		instanceID:  id,
		version:     &buildinfo.Info,
		writer:      os.Stdout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.writer == nil {
		return nil, ErrNilWriter
	}

	// ms granularity should be sufficient
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	zctx := zerolog.
		New(options.writer).With().
		Timestamp().
		Str("service", options.serviceName).
		Str("instance", options.instanceID)

	if v := options.version; v != nil {
		if v.Version != "" {
			zctx = zctx.Str("version", v.Version)
		}
		if v.Revision != "" {
			zctx = zctx.Str("revision", v.Revision)
		}
		if v.GoVersion != "" {
			zctx = zctx.Str("go_version", v.GoVersion)
		}
	}
	zlogger := zctx.Logger()

	logger := slog.New(slogzerolog.Option{
		Converter: ErrorAwareConverter,
		Level:     logLevel,
		Logger:    &zlogger,
	}.NewZerologHandler())

	return logger, nil
}

// ErrorAwareConverter is a copy of slogcommon.DefaultConverter, except that
// error attributes are expanded into an error_context group carrying the
// trace, class, and fields attached to the error.
func ErrorAwareConverter(addSource bool, replaceAttr func(groups []string, a slog.Attr) slog.Attr, loggerAttr []slog.Attr, groups []string, record *slog.Record) map[string]any {
	// aggregate all attributes
	attrs := slogcommon.AppendRecordAttrsToAttrs(loggerAttr, groups, record)

	// expand error(s), then resolve any remaining LogValuer attributes
	attrs = expandErrors(attrs)
	for i := range attrs {
		attrs[i].Value = attrs[i].Value.Resolve()
	}
	if addSource {
		attrs = append(attrs, slogcommon.Source(SourceKey, record))
	}
	attrs = slogcommon.ReplaceAttrs(replaceAttr, []string{}, attrs...)

	// handler formatter
	return slogcommon.AttrsToMap(attrs...)
}

/*
expandErrors looks for an "error" attribute, and if found, replaces it with the following:
if the error is not joined:

	{
		"error": err.Error()
		"error_context": {
			"error": err.Error(),
			"trace": <the error trace if it exists>,
			"class": <the error class if it exists>,
			"key": <value>, // for each key/value attached to the error
		},
	}

if the error is joined:

	{
		"error": [err.Error(), err.Error(), ...]
		"error_context": {
			"error_0": {
				"error": err.Error(),
				"trace": <the error trace if it exists>,
				"class": <the error class if it exists>,
				"key": <value>, // for each key/value attached to the error
			},
			"error_1": {
				...
			},
		}
	}

	See the tests for detailed examples.
*/
func expandErrors(attrs []slog.Attr) []slog.Attr {
	var entries [][]slog.Attr
	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 1 {
			return a
		}

		if a.Key != ErrorKey {
			return a
		}

		err, ok := a.Value.Any().(error)
		if !ok || err == nil {
			return a
		}

		children := errdata.Unjoin(err)
		entries = make([][]slog.Attr, len(children))
		errorStrings := make([]string, 0, len(children))
		for i, child := range children {
			entries[i] = append(entries[i], slog.String(ErrorKey, child.Error()))
			errorStrings = append(errorStrings, child.Error())

			// add the captured trace if found
			if form := trace.LogForm(child); form != nil {
				entries[i] = append(entries[i], slog.Any(TraceKey, form))
			}

			// add the error class if found
			if class := errclass.Of(child); class != errclass.Unknown {
				entries[i] = append(entries[i], slog.String(ClassKey, class.String()))
			}

			// add any attached fields
			entries[i] = append(entries[i], sanitizeAttrs(errfields.Get(child).Attrs())...)
		}

		if len(children) == 1 {
			return slog.String(ErrorKey, err.Error())
		}
		return slog.Any(a.Key, errorStrings)
	}
	results := slogcommon.ReplaceAttrs(replaceAttr, []string{}, attrs...)

	if len(entries) == 0 {
		return results
	}

	if len(entries) == 1 {
		if len(entries[0]) > 1 {
			results = append(results, slog.GroupAttrs(ErrorContextKey, entries[0]...))
		}
		return results
	}

	groups := make([]slog.Attr, len(entries))
	for i, entry := range entries {
		groups[i] = slog.GroupAttrs(fmt.Sprintf("error_%d", i), entry...)
	}
	return append(results, slog.GroupAttrs(ErrorContextKey, groups...))
}
