// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typeresolve

import (
	"context"

	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

// Future is the pending result of ResolveAsync.
type Future struct {
	done        chan struct{}
	declaration *idl.Type
	err         error
}

// ResolveAsync starts Resolve on a new goroutine. Cancelling ctx
// cancels the resolution.
func (r *Resolver) ResolveAsync(ctx context.Context, id xtypes.TypeIdentifier, options ...ResolveOption) *Future {
	future := &Future{done: make(chan struct{})}
	go func() {
		defer close(future.done)
		future.declaration, future.err = r.Resolve(ctx, id, options...)
	}()
	return future
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the resolution finishes or ctx ends. Ending ctx
// abandons the wait without cancelling the resolution.
func (f *Future) Wait(ctx context.Context) (*idl.Type, error) {
	select {
	case <-f.done:
		return f.declaration, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ready reports whether the result is available.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
