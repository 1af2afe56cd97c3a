// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typeresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/xcdr/lib/clock"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

// ErrUnresolvedType is returned when the timeout elapses before every
// referenced TypeObject has been obtained.
var ErrUnresolvedType = errors.New("typeresolve: unresolved type")

const (
	DefaultTimeout       = 5 * time.Second
	DefaultRetryInterval = 250 * time.Millisecond
	DefaultConcurrency   = 8
)

// errDeadline is the cancellation cause set when the resolve timeout
// fires.
var errDeadline = errors.New("typeresolve: deadline reached")

// Fetcher obtains the TypeObject an identifier refers to. Any error is
// treated as transient and retried until the resolve timeout.
type Fetcher interface {
	Fetch(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error) {
	return f(ctx, id)
}

// Config holds the parameters of a Resolver. Fetcher is required.
type Config struct {
	Fetcher Fetcher

	// Clock drives the timeout and retry waits. Nil means clock.Real().
	Clock clock.Clock

	// Timeout bounds one Resolve call. Zero means DefaultTimeout.
	Timeout time.Duration

	// RetryInterval is the pause after a failed round of fetches.
	// Zero means DefaultRetryInterval.
	RetryInterval time.Duration

	// Concurrency bounds the fetches in flight for one Resolve. Zero
	// means DefaultConcurrency.
	Concurrency int

	// Logger receives resolution events. Nil discards them.
	Logger *slog.Logger

	// MeterProvider and TracerProvider default to the otel globals.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Resolver resolves identifiers against a growing set of TypeObjects.
// It is safe for concurrent use.
type Resolver struct {
	fetcher       Fetcher
	clock         clock.Clock
	timeout       time.Duration
	retryInterval time.Duration
	concurrency   int
	logger        *slog.Logger
	telemetry     *telemetry

	flights singleflight.Group

	mu       sync.Mutex
	objects  *xtypes.Objects
	resolved map[string]*idl.Type
}

// New validates cfg and returns a Resolver with no known objects.
func New(cfg Config) (*Resolver, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("typeresolve: Fetcher is required")
	}
	if cfg.Timeout < 0 || cfg.RetryInterval < 0 || cfg.Concurrency < 0 {
		return nil, fmt.Errorf("typeresolve: Timeout, RetryInterval and Concurrency must not be negative")
	}

	resolver := &Resolver{
		fetcher:       cfg.Fetcher,
		clock:         cfg.Clock,
		timeout:       cfg.Timeout,
		retryInterval: cfg.RetryInterval,
		concurrency:   cfg.Concurrency,
		logger:        cfg.Logger,
		objects:       xtypes.NewObjects(),
		resolved:      make(map[string]*idl.Type),
	}
	if resolver.clock == nil {
		resolver.clock = clock.Real()
	}
	if resolver.timeout == 0 {
		resolver.timeout = DefaultTimeout
	}
	if resolver.retryInterval == 0 {
		resolver.retryInterval = DefaultRetryInterval
	}
	if resolver.concurrency == 0 {
		resolver.concurrency = DefaultConcurrency
	}
	if resolver.logger == nil {
		resolver.logger = slog.New(slog.DiscardHandler)
	}

	telemetry, err := newTelemetry(cfg.MeterProvider, cfg.TracerProvider)
	if err != nil {
		return nil, err
	}
	resolver.telemetry = telemetry
	return resolver, nil
}

// Add records a TypeObject received out of band, such as one carried
// in discovery data.
func (r *Resolver) Add(id xtypes.TypeIdentifier, object xtypes.TypeObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects.Add(id, object)
}

// AddMapping records every pair of a TypeMapping.
func (r *Resolver) AddMapping(mapping xtypes.TypeMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects.AddMapping(mapping)
}

// Known returns the number of TypeObjects collected so far.
func (r *Resolver) Known() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects.Len()
}

// ResolveOption adjusts a single Resolve call.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	timeout time.Duration
}

// WithTimeout replaces Config.Timeout for one call. Non-positive values
// are ignored.
func WithTimeout(timeout time.Duration) ResolveOption {
	return func(o *resolveOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// Resolve returns the declaration id refers to. It blocks until every
// needed TypeObject has been fetched, the timeout elapses, ctx ends, or
// an object fails verification (xtypes.ErrMalformedTypeIdentifier).
//
// Both the resolver timeout and a deadline on ctx yield
// ErrUnresolvedType; in the second case the error also matches
// context.DeadlineExceeded. Cancelling ctx returns context.Canceled.
func (r *Resolver) Resolve(ctx context.Context, id xtypes.TypeIdentifier, options ...ResolveOption) (*idl.Type, error) {
	settings := resolveOptions{timeout: r.timeout}
	for _, option := range options {
		option(&settings)
	}

	ctx, span := r.telemetry.startResolve(ctx, id)
	defer span.End()
	started := r.clock.Now()

	declaration, err := r.resolve(ctx, id, settings.timeout)

	r.telemetry.recordResolve(ctx, span, r.clock.Now().Sub(started), err)
	return declaration, err
}

func (r *Resolver) resolve(parent context.Context, id xtypes.TypeIdentifier, timeout time.Duration) (*idl.Type, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	deadline := r.clock.NewTimer(timeout)
	defer deadline.Stop()
	go func() {
		select {
		case <-deadline.C:
			cancel(errDeadline)
		case <-ctx.Done():
		}
	}()

	var lastFetchError error
	for round := 1; ; round++ {
		declaration, missing, err := r.interpret(id)
		if err != nil {
			r.logger.Warn("type identifier rejected", "type_identifier", id.String(), "error", err)
			return nil, err
		}
		if declaration != nil {
			r.logger.Debug("type resolved",
				"type_identifier", id.String(),
				"name", declaration.Name,
				"rounds", round,
			)
			return declaration, nil
		}

		if ctx.Err() == nil {
			lastFetchError = r.fetchAll(ctx, missing)
			if lastFetchError == nil {
				continue
			}
			r.logger.Debug("type object fetch failed",
				"type_identifier", id.String(),
				"missing", len(missing),
				"error", lastFetchError,
			)
		}

		retry := r.clock.NewTimer(r.retryInterval)
		select {
		case <-retry.C:
		case <-ctx.Done():
			retry.Stop()
			return nil, r.expired(parent, ctx, id, timeout, missing, lastFetchError)
		}
	}
}

// interpret returns either the declaration or the identifiers still
// missing. Successful results are memoized per identifier.
func (r *Resolver) interpret(id xtypes.TypeIdentifier) (*idl.Type, []xtypes.TypeIdentifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.String()
	if declaration, ok := r.resolved[key]; ok {
		return declaration, nil, nil
	}
	declaration, err := xtypes.Interpret(id, r.objects)
	var missing *xtypes.MissingError
	if errors.As(err, &missing) {
		return nil, missing.IDs, nil
	}
	if err != nil {
		return nil, nil, err
	}
	r.resolved[key] = declaration
	return declaration, nil, nil
}

func (r *Resolver) expired(parent, ctx context.Context, id xtypes.TypeIdentifier, timeout time.Duration, missing []xtypes.TypeIdentifier, lastFetchError error) error {
	var bound error
	switch {
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		bound = parent.Err()
	case parent.Err() != nil:
		return parent.Err()
	case !errors.Is(context.Cause(ctx), errDeadline):
		return context.Cause(ctx)
	}

	r.logger.Info("type resolution timed out",
		"type_identifier", id.String(),
		"timeout", timeout,
		"caller_deadline", bound != nil,
		"missing", len(missing),
	)
	err := fmt.Errorf("%w: %s, %d type objects missing", ErrUnresolvedType, id, len(missing))
	if bound == nil {
		err = fmt.Errorf("%w: %s after %v, %d type objects missing", ErrUnresolvedType, id, timeout, len(missing))
	}
	return errors.Join(err, bound, lastFetchError)
}

// fetchAll fetches every missing identifier and records the results.
// Objects fetched before a failure are kept.
func (r *Resolver) fetchAll(ctx context.Context, missing []xtypes.TypeIdentifier) error {
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for _, id := range missing {
		group.Go(func() error {
			object, err := r.fetch(groupContext, id)
			if err != nil {
				return err
			}
			r.Add(id, object)
			return nil
		})
	}
	return group.Wait()
}

// fetch collapses concurrent requests for the same identifier into one
// Fetcher call.
func (r *Resolver) fetch(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error) {
	key := id.String()
	result, err, shared := r.flights.Do(key, func() (any, error) {
		fetchContext, span := r.telemetry.startFetch(ctx, id)
		defer span.End()
		object, err := r.fetcher.Fetch(fetchContext, id)
		r.telemetry.recordFetch(fetchContext, span, err)
		return object, err
	})
	if shared {
		r.telemetry.recordSharedFetch(ctx)
	}
	if err != nil {
		return xtypes.TypeObject{}, fmt.Errorf("fetching %s: %w", key, err)
	}
	return result.(xtypes.TypeObject), nil
}
