// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by type resolution.
//
// Resolution waits for remote type objects with a deadline and retries
// at a fixed interval. Both waits go through a Clock so that tests can
// drive them deterministically: Real wraps the time package, Fake holds
// time still until Advance is called.
//
// A test that starts a resolution on another goroutine synchronizes
// with it through WaitForTimers before moving time forward:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	resolver := typeresolve.New(typeresolve.Config{Clock: fake, ...})
//	future := resolver.ResolveAsync(ctx, id)
//	fake.WaitForTimers(2)
//	fake.Advance(time.Second)
package clock
