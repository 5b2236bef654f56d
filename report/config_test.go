package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/execenv"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/trace/argdump"
)

const cfgPath = "faultline"

func configFromMap(t *testing.T, settings map[string]any) *config.Configuration {
	t.Helper()
	cfg, err := config.NewConfigurationFromMap(settings)
	require.NoError(t, err)
	return cfg
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg := configFromMap(t, map[string]any{
		"faultline.argsmode":    "all",
		"faultline.argslimit":   64,
		"faultline.ignore":      []string{"NoticeError"},
		"faultline.service":     "cfg-svc",
		"faultline.dedupsize":   4,
		"faultline.dedupwindow": "1m",
	})

	sink := &recordingSink{}
	buf := &bytes.Buffer{}
	r, err := report.NewFromConfig(cfg, cfgPath,
		report.WithProbe(execenv.Static(true)),
		report.WithOutput(buf),
		report.WithSinks(sink),
	)
	require.NoError(t, err)

	// ignored kind from the file
	disposition, err := r.Handle(t.Context(), report.Fault{Kind: "NoticeError", Message: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, report.Disposition{Handled: true}, disposition)
	assert.Empty(t, sink.shipped())

	// argument dumps on, within the configured limit
	_, err = r.Handle(t.Context(), boundsFault, mainFrame(42))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\n   | (int) 42")

	// service name from the file
	require.Len(t, sink.shipped(), 1)
	assert.Equal(t, "cfg-svc", sink.shipped()[0].Service)

	// dedup from the file
	repeat, err := r.Handle(t.Context(), boundsFault, mainFrame(42))
	require.NoError(t, err)
	assert.True(t, repeat.Suppressed)
}

func TestNewFromConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := configFromMap(t, map[string]any{"unrelated.key": "value"})

	buf := &bytes.Buffer{}
	r, err := report.NewFromConfig(cfg, cfgPath,
		report.WithProbe(execenv.Static(true)),
		report.WithOutput(buf),
	)
	require.NoError(t, err)

	_, err = r.Handle(t.Context(), boundsFault, mainFrame(42))
	require.NoError(t, err)

	// traces default on, argument dumps default off
	assert.Contains(t, buf.String(), "Stack trace:\n  1. main() app.src:42")
	assert.NotContains(t, buf.String(), "   | ")
}

func TestNewFromConfigInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]any
		wantErr  error
	}{
		{
			name:     "unknown args mode",
			settings: map[string]any{"faultline.argsmode": "sometimes"},
			wantErr:  argdump.ErrUnknownMode,
		},
		{
			name:     "negative args limit",
			settings: map[string]any{"faultline.argslimit": -1},
			wantErr:  argdump.ErrNegativeByteLimit,
		},
		{
			name:     "negative dedup size",
			settings: map[string]any{"faultline.dedupsize": -2},
			wantErr:  report.ErrInvalidDedup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := configFromMap(t, tt.settings)
			_, err := report.NewFromConfig(cfg, cfgPath)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewFromConfigOptionsWin(t *testing.T) {
	t.Parallel()

	cfg := configFromMap(t, map[string]any{"faultline.loggeronly": true})

	buf := &bytes.Buffer{}
	r, err := report.NewFromConfig(cfg, cfgPath,
		report.WithProbe(execenv.Static(true)),
		report.WithOutput(buf),
		report.WithLoggerOnly(false),
	)
	require.NoError(t, err)

	disposition, err := r.Handle(t.Context(), boundsFault, mainFrame())
	require.NoError(t, err)
	assert.True(t, disposition.Output)
	assert.NotEmpty(t, buf.String())
}
