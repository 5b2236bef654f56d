package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/log"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/trace"
)

// defaultSubjectPrefix is completed with the service name when the config
// section leaves the subject empty.
const defaultSubjectPrefix = "fault.reports."

type publisherConfig struct {
	// Subject identifies where reports are published to.
	Subject string
	// Service derives the default subject when Subject is empty.
	Service string
	// Stream names the JetStream stream managed by EnsureStream.
	Stream string
}

// Publisher delivers fault reports to a JetStream subject.
type Publisher struct {
	subject  string
	stream   string
	nc       *nats.Conn
	ownsConn bool
	js       jetstream.JetStream
	retrier  Retrier
	logger   *slog.Logger
}

var _ report.Sink = (*Publisher)(nil)

// NewPublisher creates a Publisher from the configuration section at
// cfgPath. The subject comes from the `subject` key, or defaults to
// `fault.reports.<service>` when only `service` is set.
func NewPublisher(cfg *config.Configuration, cfgPath string, opts ...Option) (*Publisher, error) {
	options := parseOptions(opts)

	settings := publisherConfig{}
	if err := cfg.Unmarshal(cfgPath, &settings); err != nil {
		return nil, trace.WrapError(err)
	}
	if settings.Subject == "" && settings.Service != "" {
		settings.Subject = defaultSubjectPrefix + settings.Service
	}
	if settings.Subject == "" {
		return nil, trace.WrapError(ErrNoSubject)
	}

	publisher := Publisher{
		subject: settings.Subject,
		stream:  settings.Stream,
		retrier: options.retrier,
		logger:  options.logger,
	}

	if options.nc != nil {
		if options.js == nil {
			return nil, trace.WrapError(ErrNoJetStream)
		}
		// Use provided NATS connection
		publisher.nc = options.nc
		publisher.js = options.js
	} else {
		// Set up NATS connection from config
		nc, js, err := NewJetStreamConnection(cfg, opts...)
		if err != nil {
			return nil, err
		}
		publisher.ownsConn = true
		publisher.nc = nc
		publisher.js = js
	}

	return &publisher, nil
}

// Subject reports the subject the publisher delivers to.
func (p *Publisher) Subject() string {
	return p.subject
}

// EnsureStream creates or updates the JetStream stream that retains the
// feed, named by the `stream` config key and bound to the feed subject.
// Streams shared between several publishers are better managed outside.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	if p.stream == "" {
		return trace.WrapError(ErrNoStream)
	}

	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     p.stream,
		Subjects: []string{p.subject},
	})
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	return nil
}

// Ship publishes the report as JSON on the feed subject. Failed publishes
// are retried by the configured retrier before the error is returned.
func (p *Publisher) Ship(ctx context.Context, rep report.Report) (err error) {
	defer func() {
		err = errfields.Add(err, slog.String("report_id", rep.ID))
	}()

	data, err := json.Marshal(rep)
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Persistent)
	}

	return p.retrier.Try(ctx, func() error {
		if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
			return errclass.Mark(trace.WrapError(err), errclass.Transient)
		}
		return nil
	})
}

// Close drains the connection when the publisher owns it. Connections
// supplied by the caller are left for their creator to close.
func (p *Publisher) Close() {
	if !p.ownsConn {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("drain nats connection", log.ErrAttr(err))
		p.nc.Close()
	}
}
