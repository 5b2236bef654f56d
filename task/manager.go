package task

import (
	"context"
	"log/slog"
	"slices"

	"github.com/faultline-labs/faultline/log"
	"github.com/faultline-labs/faultline/safe/errgroup"
)

// Manager manages a group of tasks that
// should all stop when any one of them stops.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	logger  *slog.Logger
	cleanup []func()
}

type options struct {
	logger *slog.Logger
}

// Option is an option func for NewManager.
type Option func(options *options)

// WithLogger sets the logger to be used.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	// Set up default options
	options := options{
		logger: log.NewNilLogger(),
	}

	// Apply provided options
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		group:  errgroup.New(),
		logger: options.logger,
	}
}

// Run immediately starts all of the given tasks.
func (m *Manager) Run(tasks ...Task) {
	for _, t := range tasks {
		// safe/errgroup recovers panics as errors, so a panicking
		// task stops the group rather than the process.
		m.group.Go(m.runTask(t, true))
	}
}

// RunTerminable immediately starts all of the given tasks. These tasks are
// expected to terminate without error, while others continue running.
func (m *Manager) RunTerminable(tasks ...Task) {
	for _, t := range tasks {
		m.group.Go(m.runTask(t, false))
	}
}

// Cleanup registers a function that runs after all tasks are stopped.
// Similar to defer, cleanup functions are executed in the reverse order
// in which they were registered.
func (m *Manager) Cleanup(f func()) {
	m.cleanup = append(m.cleanup, f)
}

// Wait blocks until all tasks are complete, then executes all registered
// cleanup functions.
// Wait returns the first encountered error.
func (m *Manager) Wait() error {
	err := m.group.Wait()
	for _, f := range slices.Backward(m.cleanup) {
		f()
	}
	return err
}

// Stop cancels the context immediately and waits for all running tasks to complete.
func (m *Manager) Stop() error {
	m.cancel()
	return m.Wait()
}

func (m *Manager) runTask(t Task, terminateAll bool) func() error {
	return func() error {
		m.logger.Info("task starting", slog.String("task", t.Name()))
		if err := t.Run(m.ctx); err != nil {
			m.logger.Error("task failed", slog.String("task", t.Name()), log.ErrAttr(err))
			m.cancel()
			return err
		}

		if terminateAll {
			// when the task completes, regardless of why, cancel the context
			// so that other tasks know they should also stop
			defer m.cancel()
		}

		m.logger.Info("task stopped", slog.String("task", t.Name()))
		return nil
	}
}

// Context returns the context used for managing all tasks.
func (m *Manager) Context() context.Context {
	return m.ctx
}
