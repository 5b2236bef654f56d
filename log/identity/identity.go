// Package identity pins down who this process is for logs and reports.
package identity

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
)

type identity struct {
	serviceName string
	instanceID  string
}

var (
	current = identity{
		serviceName: defaultServiceName(),
		instanceID:  xid.New().String(),
	}
	setServiceNameOnce sync.Once
)

// defaultServiceName falls back to the executable name until a service
// claims its own.
func defaultServiceName() string {
	exe, err := os.Executable()
	if err != nil {
		return "unknown"
	}
	return filepath.Base(exe)
}

// WhoAmI returns the process identity.
// serviceName can be set once at startup; before that it is the executable
// name. instanceID uniquely identifies this execution and never changes.
func WhoAmI() (serviceName, instanceID string) {
	return current.serviceName, current.instanceID
}

// SetServiceName claims the service name. Protected by sync.Once so the
// name cannot drift after startup. Leave it unset in tests.
func SetServiceName(name string) {
	setServiceNameOnce.Do(func() {
		current.serviceName = name
	})
}
