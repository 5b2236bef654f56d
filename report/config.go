package report

import (
	"time"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/trace/argdump"
)

type reporterConfig struct {
	Trace         bool          `koanf:"trace"`
	ArgsMode      string        `koanf:"argsmode"`
	ArgsFrames    int           `koanf:"argsframes"`
	ArgsLimit     int           `koanf:"argslimit"`
	CLIOnly       bool          `koanf:"clionly"`
	OutputCLIOnly bool          `koanf:"outputclionly"`
	LoggerOnly    bool          `koanf:"loggeronly"`
	Ignore        []string      `koanf:"ignore"`
	DedupSize     int           `koanf:"dedupsize"`
	DedupWindow   time.Duration `koanf:"dedupwindow"`
	Service       string        `koanf:"service"`
}

// NewFromConfig builds a Reporter from the config section at cfgPath.
// Options given here are applied after the file settings and win.
func NewFromConfig(cfg *config.Configuration, cfgPath string, opts ...Option) (*Reporter, error) {
	settings := reporterConfig{
		Trace:     true,
		ArgsLimit: argdump.DefaultByteLimit,
	}
	if err := cfg.Unmarshal(cfgPath, &settings); err != nil {
		return nil, err
	}

	mode, err := argdump.ParseMode(settings.ArgsMode)
	if err != nil {
		return nil, err
	}

	configured := []Option{
		WithTrace(settings.Trace),
		WithArgDumpMode(mode),
		WithArgDumpFrames(settings.ArgsFrames),
		WithArgDumpByteLimit(settings.ArgsLimit),
		WithCommandLineOnly(settings.CLIOnly),
		WithOutputOnlyInCommandLine(settings.OutputCLIOnly),
		WithLoggerOnly(settings.LoggerOnly),
		WithIgnoredKinds(settings.Ignore...),
		WithDedup(settings.DedupSize, settings.DedupWindow),
	}
	if settings.Service != "" {
		configured = append(configured, WithServiceName(settings.Service))
	}

	return New(append(configured, opts...)...)
}
