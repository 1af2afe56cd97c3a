// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what a binary was built from and which type
// system revision it speaks.
//
// The release string and build provenance come from variables that
// the build overrides with -ldflags -X: [Version], [GitCommit],
// [GitDirty], and [BuildTime]. Unreleased and test builds keep the
// placeholders "0.1.0-dev" and "unknown".
//
// [Info] is the one-line form printed by --version. [Full] appends
// [TypeSystem], the supported [Encodings], and the Go toolchain and
// platform; peers comparing type identifiers should agree on
// TypeSystem.
package version
