package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faultline-labs/faultline/log/identity"
)

func TestWhoAmI(t *testing.T) {
	t.Parallel()

	service, instance := identity.WhoAmI()
	assert.NotEmpty(t, service)
	assert.NotEmpty(t, instance)

	// the instance ID is stable for the life of the process
	_, again := identity.WhoAmI()
	assert.Equal(t, instance, again)
}
