package feed

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/trace"
)

var (
	ErrNotRunning = errors.New("embedded nats server is not running")
	ErrNotReady   = errors.New("embedded nats server is not ready for connections")
)

type embeddedServerConfig struct {
	ServerName        string `koanf:"servername"`        // Optionally provide a name for the embedded server
	ListenPort        int    `koanf:"listenport"`        // 0 = don't listen
	JetStreamDisabled bool   `koanf:"jetstreamdisabled"` // Disable JetStream functionality
	StoreDir          string `koanf:"storedir"`          // Directory in which to store JetStream data
	EnableLogging     bool   `koanf:"enablelogging"`     // Enable logging
}

// EmbeddedServer is an embedded NATS server with a connection that can be
// shared for local use, such as tests or single-process deployments.
type EmbeddedServer struct {
	ns        *server.Server
	inProcess bool
}

// NewEmbeddedServer creates an EmbeddedServer parsing a limited config set
// for server options. If more options are required, it is probably better
// to use the nats.io code directly.
func NewEmbeddedServer(cfg *config.Configuration, cfgPath string) (*EmbeddedServer, error) {
	natsConfig := embeddedServerConfig{}

	if err := cfg.Unmarshal(cfgPath, &natsConfig); err != nil {
		return nil, trace.WrapError(err)
	}

	serverOpts := &server.Options{
		ServerName: natsConfig.ServerName,
		DontListen: (natsConfig.ListenPort == 0),
		Port:       natsConfig.ListenPort,
		JetStream:  !natsConfig.JetStreamDisabled,
		StoreDir:   natsConfig.StoreDir,

		// Logging options
		Debug: true,
		Trace: true,
	}

	ns, err := server.NewServer(serverOpts)
	if err != nil {
		return nil, trace.WrapError(err)
	}

	// Enable logging if requested
	if natsConfig.EnableLogging {
		ns.ConfigureLogger()
	}

	// Start the server, and ensure it is ready
	go ns.Start()
	if !ns.ReadyForConnections(time.Second * 5) {
		ns.Shutdown()
		return nil, errclass.Mark(trace.WrapError(ErrNotReady), errclass.Transient)
	}

	return &EmbeddedServer{
		ns:        ns,
		inProcess: serverOpts.DontListen,
	}, nil
}

// Name returns the name of this task for the purposes of logging.
func (s *EmbeddedServer) Name() string {
	return "embedded_nats_server_" + s.ns.Name()
}

// Run blocks until the context is done, or the server stops running.
func (s *EmbeddedServer) Run(ctx context.Context) error {
	defer s.Close()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.ns.Running() {
				return ErrNotRunning
			}
		}
	}
}

// NewConnection returns a new connection to the embedded server.
// Callers are responsible for closing this connection when finished with it.
func (s *EmbeddedServer) NewConnection() (*nats.Conn, error) {
	clientOpts := []nats.Option{}
	if s.inProcess {
		clientOpts = append(clientOpts, nats.InProcessServer(s.ns))
	}

	nc, err := nats.Connect(s.ns.ClientURL(), clientOpts...)
	if err != nil {
		return nil, errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	return nc, nil
}

// Close will shut down the embedded nats server.
func (s *EmbeddedServer) Close() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
