// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the xcdr
// commands. These functions centralize the raw I/O that happens before
// the structured logger exists or after main has given up:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized.
//   - Choosing the process exit status: 0 for a --help request, 2 for
//     invalid invocations wrapped by [Usage], and 1 for everything
//     else.
package process
