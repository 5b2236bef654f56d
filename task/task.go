// Package task supervises long-running background services, such as a
// report dispatcher or an embedded message server, stopping them together
// when any one of them stops.
package task

import "context"

// Task represents a background service.
type Task interface {
	// Run must perform the work of this service and block until the
	// context is cancelled, or until the service cannot continue due
	// to an error.
	Run(context.Context) error

	// Name provides a human-friendly name for use in logging.
	Name() string
}
