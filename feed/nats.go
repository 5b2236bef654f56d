// Package feed publishes finished fault reports to a NATS JetStream
// subject, one JSON message per report.
package feed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/log"
	"github.com/faultline-labs/faultline/retry"
	"github.com/faultline-labs/faultline/trace"
)

const (
	natsConfigPath = "nats"

	defaultPublishAttempts = 10
)

var (
	ErrNoSubject   = errors.New("must provide a subject")
	ErrNoStream    = errors.New("must provide a stream name")
	ErrNoJetStream = errors.New("nats: jetstream not supported")
)

type natsConnectionConfig struct {
	Address         string
	CredentialsPath string `koanf:"credentialspath"` // Use this for .creds files
	UserJWT         string `koanf:"userjwt"`         // Or use UserJWT and NKeySeed for passing values directly.
	NKeySeed        string `koanf:"nkeyseed"`
}

// NewConnection creates a new NATS connection from the connection
// configuration section (`nats` unless overridden by option).
func NewConnection(cfg *config.Configuration, opts ...Option) (*nats.Conn, error) {
	options := parseOptions(opts)

	// Set default value
	natsConfig := natsConnectionConfig{
		Address: nats.DefaultURL,
	}

	// Update value from config
	if err := cfg.Unmarshal(options.connectionConfigPath, &natsConfig); err != nil {
		return nil, trace.WrapError(err)
	}

	// prepare connection options
	connectionOptions := make([]nats.Option, 0)

	// add user credentials
	if natsConfig.CredentialsPath != "" {
		connectionOptions = append(connectionOptions, nats.UserCredentials(natsConfig.CredentialsPath))
	} else if natsConfig.UserJWT != "" && natsConfig.NKeySeed != "" {
		connectionOptions = append(connectionOptions, nats.UserJWTAndSeed(natsConfig.UserJWT, natsConfig.NKeySeed))
	}

	nc, err := nats.Connect(natsConfig.Address, connectionOptions...)
	if err != nil {
		return nil, errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	return nc, nil
}

// NewJetStreamConnection creates a new NATS connection and a JetStream context.
func NewJetStreamConnection(cfg *config.Configuration, opts ...Option) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := NewConnection(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, nil, trace.WrapError(err)
	}

	return nc, js, nil
}

// Retrier reattempts failed publishes.
type Retrier interface {
	Try(ctx context.Context, f func() error) error
}

type options struct {
	logger               *slog.Logger
	retrier              Retrier
	nc                   *nats.Conn
	js                   jetstream.JetStream
	connectionConfigPath string
}

func parseOptions(opts []Option) options {
	// The default retry options are valid, so this cannot fail.
	retrier, _ := retry.NewRetrier(retry.WithMaxAttempts(defaultPublishAttempts))

	options := options{
		logger:               log.NewNilLogger(),
		retrier:              retrier,
		connectionConfigPath: natsConfigPath,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Option is an option func for the constructors in this package.
type Option func(options *options)

// WithLogger sets the logger to be used.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithRetrier allows users to specify a retry mechanism to use for publishes.
func WithRetrier(retrier Retrier) Option {
	return func(options *options) {
		options.retrier = retrier
	}
}

// WithConnection allows for providing a ready-made nats connection.
func WithConnection(nc *nats.Conn) Option {
	return func(options *options) {
		options.nc = nc
		js, err := jetstream.New(nc)
		if err == nil {
			options.js = js
		}
	}
}

// WithConnectionConfigPath sets the config section that holds the nats
// connection settings.
func WithConnectionConfigPath(configPath string) Option {
	return func(options *options) {
		options.connectionConfigPath = configPath
	}
}
