// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides test helpers shared across packages.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes and so cannot live in deeply
// nested t.TempDir() paths.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests waiting on goroutines fail instead of hanging.
// They are the only helpers that use the wall clock; code under test
// takes a clock.Clock.
//
// Helpers call t.Fatalf on failure.
package testutil
