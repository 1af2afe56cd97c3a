// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typeresolve turns a received TypeIdentifier into a usable
// type declaration, fetching the TypeObjects it depends on.
//
// A Resolver keeps every TypeObject it has seen. Resolve interprets
// the identifier against them; each time the interpreter reports
// missing objects the Resolver asks its [Fetcher] for them, in
// parallel and with duplicate requests collapsed, and interprets
// again. Fetch failures are retried at Config.RetryInterval until
// Config.Timeout has elapsed, at which point Resolve returns
// [ErrUnresolvedType]. The error is recoverable: a later Resolve with
// a longer timeout starts from the objects already collected.
//
// ResolveAsync runs the same work on its own goroutine and returns a
// [Future], so a caller on an encoding path never blocks on the
// network.
//
// Resolutions and fetches are counted through an OpenTelemetry meter
// and traced as spans; both default to the global providers.
package typeresolve
