// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the part of testing.TB the helpers use.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from channel within timeout, or fails
// the test.
//
//	err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return")
func RequireReceive[T any](t Fataler, channel <-chan T, timeout time.Duration, messageAndArgs ...any) T {
	t.Helper()
	select {
	case value, ok := <-channel:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(messageAndArgs))
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(messageAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for channel to close within timeout, or fails the
// test.
func RequireClosed(t Fataler, channel <-chan struct{}, timeout time.Duration, messageAndArgs ...any) {
	t.Helper()
	select {
	case <-channel:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for channel close: %s", timeout, formatMessage(messageAndArgs))
	}
}

func formatMessage(messageAndArgs []any) string {
	switch {
	case len(messageAndArgs) == 0:
		return "(no message)"
	case len(messageAndArgs) == 1:
		return fmt.Sprint(messageAndArgs[0])
	}
	if format, ok := messageAndArgs[0].(string); ok {
		return fmt.Sprintf(format, messageAndArgs[1:]...)
	}
	return fmt.Sprint(messageAndArgs...)
}
