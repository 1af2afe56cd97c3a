// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/xcdr/lib/config"
	"github.com/bureau-foundation/xcdr/lib/typelookup"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

// resolveReferences resolves each reference through the lookup service
// of a running daemon and prints the declarations. A reference is
// either the hex encoding of a type identifier, as printed by
// --describe, or a qualified type name registered with the service.
func resolveReferences(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger, references []string, timeout time.Duration) error {
	client := typelookup.NewClient(cfg.Lookup.SocketPath)
	resolverConfig, err := cfg.ResolverConfig()
	if err != nil {
		return err
	}
	resolverConfig.Fetcher = client
	resolverConfig.Logger = logger
	resolver, err := typeresolve.New(resolverConfig)
	if err != nil {
		return err
	}

	var options []typeresolve.ResolveOption
	if timeout > 0 {
		options = append(options, typeresolve.WithTimeout(timeout))
	}

	ids := make([]xtypes.TypeIdentifier, len(references))
	for index, reference := range references {
		if ids[index], err = lookupReference(ctx, client, reference); err != nil {
			return err
		}
	}
	futures := make([]*typeresolve.Future, len(ids))
	for index, id := range ids {
		futures[index] = resolver.ResolveAsync(ctx, id, options...)
	}
	for index, future := range futures {
		declaration, err := future.Wait(ctx)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", references[index], err)
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", declaration.Declaration()); err != nil {
			return err
		}
	}
	logger.Info("types resolved", "types", len(ids), "objects", resolver.Known())
	return nil
}

// lookupReference turns a reference into a type identifier. Names are
// looked up in the service and stand for their complete identifier.
func lookupReference(ctx context.Context, client *typelookup.Client, reference string) (xtypes.TypeIdentifier, error) {
	if data, err := hex.DecodeString(reference); err == nil {
		if id, err := xtypes.UnmarshalTypeIdentifier(data); err == nil {
			return id, nil
		}
	}
	_, complete, err := client.Identifiers(ctx, reference)
	if err != nil {
		return xtypes.TypeIdentifier{}, fmt.Errorf("looking up %s: %w", reference, err)
	}
	return complete, nil
}
