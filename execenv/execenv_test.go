package execenv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faultline-labs/faultline/execenv"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	assert.True(t, execenv.Static(true).CommandLine())
	assert.False(t, execenv.Static(false).CommandLine())
}

func TestDetectForcedOn(t *testing.T) { //nolint:paralleltest // uses env vars
	t.Setenv(execenv.ForceEnvVar, "true")
	assert.True(t, execenv.Detect().CommandLine())
}

func TestDetectForcedOff(t *testing.T) { //nolint:paralleltest // uses env vars
	t.Setenv(execenv.ForceEnvVar, "0")
	assert.False(t, execenv.Detect().CommandLine())
}

func TestDetectIgnoresGarbageOverride(t *testing.T) { //nolint:paralleltest // uses env vars
	t.Setenv(execenv.ForceEnvVar, "maybe")
	// falls back to real detection; under go test the streams are pipes
	assert.False(t, execenv.Detect().CommandLine())
}

func TestDetectWithoutOverride(t *testing.T) { //nolint:paralleltest // uses env vars
	t.Setenv(execenv.ForceEnvVar, "")
	// test processes run with piped stdio, so detection answers false
	assert.False(t, execenv.Detect().CommandLine())
}
