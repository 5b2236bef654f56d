// Package errgroup wraps golang.org/x/sync/errgroup so that a panic in any
// goroutine surfaces as a classed error from Wait instead of crashing the
// process.
package errgroup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/faultline-labs/faultline/safe"
)

type Group struct {
	group *errgroup.Group
}

func WithContext(ctx context.Context) (*Group, context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	return &Group{group: group}, ctx
}

func New() *Group {
	return &Group{group: new(errgroup.Group)}
}

func (g *Group) Go(f func() error) {
	g.group.Go(func() error {
		return safe.Run(f)
	})
}

func (g *Group) SetLimit(n int) {
	g.group.SetLimit(n)
}

func (g *Group) TryGo(f func() error) bool {
	return g.group.TryGo(func() error {
		return safe.Run(f)
	})
}

func (g *Group) Wait() error {
	return g.group.Wait()
}
