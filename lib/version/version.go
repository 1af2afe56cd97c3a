// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"strings"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/xcdr/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// TypeSystem is the revision of the XTypes type system whose
// TypeObject encoding and hashing these binaries implement. Peers that
// disagree on it compute different type identifiers for the same type.
const TypeSystem = "XTypes 1.3"

// Encodings lists the data representations the codec produces.
var Encodings = []string{"CDR", "PLAIN_CDR2", "DELIMITED_CDR2", "PL_CDR2"}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including the type system
// revision, the supported encodings, and the Go toolchain.
func Full() string {
	return fmt.Sprintf("%s\n  Type system: %s\n  Encodings: %s\n  Go: %s\n  Platform: %s/%s",
		Info(), TypeSystem, strings.Join(Encodings, ", "), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	return GitCommit
}
