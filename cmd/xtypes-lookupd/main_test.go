// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/bureau-foundation/xcdr/lib/config"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/process"
	"github.com/bureau-foundation/xcdr/lib/testutil"
	"github.com/bureau-foundation/xcdr/lib/typelib"
	"github.com/bureau-foundation/xcdr/lib/typelookup"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

const demoSchema = `
module: demo
types:
  - struct: Point
    extensibility: appendable
    members:
      - {name: x, type: int32, key: true}
      - {name: y, type: int32}
      - {name: label, type: Label, optional: true}
  - typedef: Label
    type: "string<16>"
  - struct: Polyline
    members:
      - {name: points, type: "sequence<Point>"}
`

type environment struct {
	directory  string
	configPath string
	schemaPath string
	socketPath string
	library    string
}

func newEnvironment(t *testing.T) environment {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	directory := testutil.SocketDir(t)
	env := environment{
		directory:  directory,
		configPath: filepath.Join(directory, "xcdr.yaml"),
		schemaPath: filepath.Join(directory, "demo.yaml"),
		socketPath: filepath.Join(directory, "lookup.sock"),
		library:    filepath.Join(directory, "types.db"),
	}
	content := "paths:\n  root: " + directory + "\n" +
		"library:\n  path: " + env.library + "\n" +
		"lookup:\n  socket_path: " + env.socketPath + "\n" +
		"schemas:\n  - " + env.schemaPath + "\n"
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	require.NoError(t, os.WriteFile(env.schemaPath, []byte(demoSchema), 0o644))
	return env
}

func TestVersionAndHelp(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &stdout, io.Discard))
	require.True(t, strings.HasPrefix(stdout.String(), "xtypes-lookupd "))

	stdout.Reset()
	err := run(context.Background(), []string{"--help"}, &stdout, io.Discard)
	require.True(t, errors.Is(err, pflag.ErrHelp))
	require.Equal(t, process.ExitOK, process.ExitCode(err))
	require.Contains(t, stdout.String(), "--schema")
}

func TestInvocationErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--no-such-flag"},
		{"stray-argument"},
		{"--log-level", "loud", "--version=false"},
		{"--resolve", "demo::Point", "--describe"},
		{"--resolve", "demo::Point", "--resolve-timeout", "-1s"},
	} {
		err := run(context.Background(), args, io.Discard, io.Discard)
		require.Error(t, err, "args %v", args)
		require.Equal(t, process.ExitUsage, process.ExitCode(err), "args %v: %v", args, err)
	}

	env := newEnvironment(t)
	err := run(context.Background(), []string{"--config", env.configPath, "--schema", filepath.Join(env.directory, "missing.yaml")}, io.Discard, io.Discard)
	require.Error(t, err)
	require.Equal(t, process.ExitFailure, process.ExitCode(err))
}

func TestDescribe(t *testing.T) {
	env := newEnvironment(t)
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", env.configPath, "--describe"}, &stdout, io.Discard))

	output := stdout.String()
	require.Contains(t, output, "@appendable struct demo::Point {")
	require.Contains(t, output, "typedef string<16> demo::Label;")
	require.Equal(t, 3, strings.Count(output, "minimal:  "))
	require.Equal(t, 3, strings.Count(output, "complete: "))
	require.Equal(t, 3, strings.Count(output, "id:       "))

	// Default encoding is little-endian XCDR2: delimited for the
	// appendable Point, plain for the final Polyline.
	require.Contains(t, output, "sample:   0009")
	require.Contains(t, output, "sample:   0007")
	require.Equal(t, 1, strings.Count(output, "key hash: "))

	_, err := os.Stat(env.library)
	require.True(t, os.IsNotExist(err), "--describe must not create the library")
}

func TestDescribeUsesEncodingConfig(t *testing.T) {
	env := newEnvironment(t)
	file, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = file.WriteString("encoding:\n  endianness: big\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", env.configPath, "--describe"}, &stdout, io.Discard))
	require.Contains(t, stdout.String(), "sample:   0008")
	require.Contains(t, stdout.String(), "sample:   0006")
}

func TestRegisterOnly(t *testing.T) {
	env := newEnvironment(t)
	ctx := context.Background()
	args := []string{"--config", env.configPath, "--register-only", "--log-level", "warn"}
	require.NoError(t, run(ctx, args, io.Discard, io.Discard))

	library, err := typelib.Open(ctx, typelib.Config{Path: env.library})
	require.NoError(t, err)
	stats, err := library.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Names)
	require.Positive(t, stats.Objects)

	minimal, complete, err := library.Identifiers(ctx, "demo::Polyline")
	require.NoError(t, err)
	_, err = library.Get(ctx, minimal)
	require.NoError(t, err)
	_, err = library.Get(ctx, complete)
	require.NoError(t, err)
	require.NoError(t, library.Close())

	// Registering the same schemas again adds nothing.
	require.NoError(t, run(ctx, args, io.Discard, io.Discard))
	library, err = typelib.Open(ctx, typelib.Config{Path: env.library})
	require.NoError(t, err)
	defer library.Close()
	again, err := library.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, stats, again)
}

func TestServe(t *testing.T) {
	env := newEnvironment(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--config", env.configPath, "--log-level", "error"}, io.Discard, io.Discard)
	}()

	client := typelookup.NewClient(env.socketPath)
	var status typelookup.StatusResult
	require.Eventually(t, func() bool {
		var err error
		status, err = client.Status(ctx)
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, int64(3), status.Names)

	minimal, _, err := client.Identifiers(ctx, "demo::Point")
	require.NoError(t, err)
	_, err = client.Fetch(ctx, minimal)
	require.NoError(t, err)

	_, _, err = client.Identifiers(ctx, "demo::Missing")
	require.ErrorIs(t, err, typelookup.ErrNotFound)

	cancel()
	require.NoError(t, testutil.RequireReceive(t, done, 10*time.Second, "run did not return after cancellation"))
	_, err = os.Stat(env.socketPath)
	require.True(t, os.IsNotExist(err), "socket left behind")
}

// serve runs the daemon until the test ends and waits for its socket.
func serve(t *testing.T, env environment) *typelookup.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--config", env.configPath, "--log-level", "error"}, io.Discard, io.Discard)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 10*time.Second, "run did not return after cancellation")
	})

	client := typelookup.NewClient(env.socketPath)
	require.Eventually(t, func() bool {
		_, err := client.Status(ctx)
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	return client
}

func TestResolve(t *testing.T) {
	env := newEnvironment(t)
	client := serve(t, env)
	ctx := context.Background()

	_, complete, err := client.Identifiers(ctx, "demo::Point")
	require.NoError(t, err)
	encoded, err := xtypes.MarshalTypeIdentifier(complete)
	require.NoError(t, err)

	var stdout bytes.Buffer
	args := []string{"--config", env.configPath, "--log-level", "error",
		"--resolve", "demo::Polyline", "--resolve", hex.EncodeToString(encoded)}
	require.NoError(t, run(ctx, args, &stdout, io.Discard))
	output := stdout.String()
	require.Contains(t, output, "struct demo::Polyline {")
	require.Contains(t, output, "@appendable struct demo::Point {")
	require.Less(t, strings.Index(output, "demo::Polyline {"), strings.Index(output, "@appendable struct demo::Point {"),
		"declarations must print in argument order")
}

func TestResolveFailures(t *testing.T) {
	env := newEnvironment(t)
	serve(t, env)
	ctx := context.Background()

	err := run(ctx, []string{"--config", env.configPath, "--resolve", "demo::Missing"}, io.Discard, io.Discard)
	require.ErrorIs(t, err, typelookup.ErrNotFound)
	require.Equal(t, process.ExitFailure, process.ExitCode(err))

	unregistered := idl.NewStruct("other::Thing", idl.Final).SetMembers(idl.Member{Name: "x", Type: idl.Int64})
	id, err := xtypes.NewBuilder(nil).TypeIdentifier(unregistered, xtypes.EquivalenceComplete)
	require.NoError(t, err)
	encoded, err := xtypes.MarshalTypeIdentifier(id)
	require.NoError(t, err)

	args := []string{"--config", env.configPath, "--log-level", "error",
		"--resolve", hex.EncodeToString(encoded), "--resolve-timeout", "300ms"}
	err = run(ctx, args, io.Discard, io.Discard)
	require.ErrorIs(t, err, typeresolve.ErrUnresolvedType)
}
