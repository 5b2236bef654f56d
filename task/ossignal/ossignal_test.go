package ossignal_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline-labs/faultline/task/ossignal"
)

const (
	waitTime = time.Millisecond * 50
)

func TestTaskStops(t *testing.T) {
	t.Parallel()
	// Note: Cannot use synctest.Test here because this uses OS signals

	testCases := []struct {
		testName string
		// distinct per case so the parallel runs cannot trip each other
		signal syscall.Signal
		stop   func(cancel context.CancelFunc) error
	}{
		{
			testName: "os signal received",
			signal:   syscall.SIGCONT,
			stop: func(context.CancelFunc) error {
				return syscall.Kill(syscall.Getpid(), syscall.SIGCONT)
			},
		},
		{
			testName: "context cancelled",
			signal:   syscall.SIGIO,
			stop: func(cancel context.CancelFunc) error {
				cancel()
				return nil
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			t.Parallel()

			task := ossignal.NewTask(ossignal.WithSignals(tc.signal))
			assert.Equal(t, "os signal task", task.Name())

			ctx, cancel := context.WithCancel(t.Context())
			t.Cleanup(cancel)

			// start the task (which blocks) and capture any resulting error in a channel
			errCh := make(chan error)
			go func() {
				errCh <- task.Run(ctx)
			}()

			timer := time.NewTimer(waitTime)
			t.Cleanup(func() {
				timer.Stop()
			})

			// waiting around for a while, the task should not exit
			select {
			case err := <-errCh:
				require.NoError(t, err)
			case <-timer.C:
			}

			require.NoError(t, tc.stop(cancel))

			// verify that the task stops (wait a max amount of time for this)
			timer.Reset(waitTime)
			select {
			case err := <-errCh:
				require.NoError(t, err)
			case <-timer.C:
				t.Fatal("task failed to stop")
			}
		})
	}
}
