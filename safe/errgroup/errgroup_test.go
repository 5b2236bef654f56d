package errgroup_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/safe/errgroup"
)

var errWorker = fmt.Errorf("worker failed")

func succeeds() error {
	return nil
}

func fails() error {
	return errWorker
}

func blowsUp() error {
	panic("worker panic")
}

type workFunc func() error

func TestGroup(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		testName      string
		funcs         []workFunc
		expectedClass errclass.Class
	}{
		{
			testName:      "all workers succeed",
			funcs:         []workFunc{succeeds, succeeds, succeeds},
			expectedClass: errclass.Nil,
		},
		{
			testName:      "one worker errors",
			funcs:         []workFunc{succeeds, succeeds, fails},
			expectedClass: errclass.Unknown,
		},
		{
			testName:      "one worker panics",
			funcs:         []workFunc{succeeds, succeeds, blowsUp},
			expectedClass: errclass.Panic,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			t.Parallel()

			g := errgroup.New()
			for _, f := range tc.funcs {
				g.Go(f)
			}

			err := g.Wait()
			if class := errclass.Of(err); class != tc.expectedClass {
				t.Errorf("unexpected error class: want: %s got %s", tc.expectedClass, class)
			}
		})
	}
}

func TestGroupWithContext(t *testing.T) {
	t.Parallel()

	g, ctx := errgroup.WithContext(t.Context())
	g.SetLimit(2)

	g.Go(fails)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait()
	assert.ErrorIs(t, err, errWorker)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestGroupTryGo(t *testing.T) {
	t.Parallel()

	g := errgroup.New()
	g.SetLimit(1)

	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, g.TryGo(func() error {
		close(started)
		<-release
		return nil
	}))

	<-started
	assert.False(t, g.TryGo(succeeds))

	close(release)
	assert.NoError(t, g.Wait())
}
