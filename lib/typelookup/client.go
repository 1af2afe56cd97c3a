// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/xcdr/lib/codec"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

const (
	dialTimeout = 5 * time.Second

	// responseReadTimeout covers the server's read and write timeouts
	// plus handler time.
	responseReadTimeout = 45 * time.Second

	// maxResponseSize bounds one response. A full get_type_objects
	// response can carry MaxIdentifiersPerRequest objects.
	maxResponseSize = 16 * 1024 * 1024
)

// ErrNotFound is returned when the server's library does not hold the
// requested object or name.
var ErrNotFound = errors.New("typelookup: not found")

var _ typeresolve.Fetcher = (*Client)(nil)

// ServiceError is returned when the server answers ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("typelookup: %s failed: %s", e.Action, e.Message)
}

// Client talks to a Server. Each call opens its own connection, so a
// Client is safe for concurrent use.
type Client struct {
	socketPath string
}

// NewClient returns a client for the server listening at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// GetTypeObjects requests the objects of ids. Identifiers the server
// does not hold are returned in missing. Every returned object is
// decoded; objects of hashed identifiers are checked against their
// hash.
func (c *Client) GetTypeObjects(ctx context.Context, ids []xtypes.TypeIdentifier) (found []xtypes.TypeIdentifierTypeObjectPair, missing []xtypes.TypeIdentifier, err error) {
	request := Request{Action: ActionGetTypeObjects, Identifiers: make([][]byte, len(ids))}
	for index, id := range ids {
		if request.Identifiers[index], err = xtypes.MarshalTypeIdentifier(id); err != nil {
			return nil, nil, fmt.Errorf("typelookup: %w", err)
		}
	}

	var result TypeObjectsResult
	if err := c.call(ctx, request, &result); err != nil {
		return nil, nil, err
	}

	for _, entry := range result.Objects {
		id, err := xtypes.UnmarshalTypeIdentifier(entry.Identifier)
		if err != nil {
			return nil, nil, fmt.Errorf("typelookup: response identifier: %w", err)
		}
		if id.Kind != xtypes.IdentifierStronglyConnectedComponent && xtypes.HashOf(entry.Object) != id.Hash {
			return nil, nil, fmt.Errorf("%w: server returned an object that does not match %s",
				xtypes.ErrMalformedTypeIdentifier, id)
		}
		object, err := xtypes.UnmarshalTypeObject(entry.Object)
		if err != nil {
			return nil, nil, fmt.Errorf("typelookup: object for %s: %w", id, err)
		}
		found = append(found, xtypes.TypeIdentifierTypeObjectPair{ID: id, Object: object})
	}
	for _, encoded := range result.Missing {
		id, err := xtypes.UnmarshalTypeIdentifier(encoded)
		if err != nil {
			return nil, nil, fmt.Errorf("typelookup: response identifier: %w", err)
		}
		missing = append(missing, id)
	}
	return found, missing, nil
}

// Fetch requests a single object.
func (c *Client) Fetch(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error) {
	found, _, err := c.GetTypeObjects(ctx, []xtypes.TypeIdentifier{id})
	if err != nil {
		return xtypes.TypeObject{}, err
	}
	for _, pair := range found {
		if pair.ID.Equal(id) {
			return pair.Object, nil
		}
	}
	return xtypes.TypeObject{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Identifiers requests the identifiers recorded for a qualified name.
func (c *Client) Identifiers(ctx context.Context, name string) (minimal, complete xtypes.TypeIdentifier, err error) {
	var result TypeIdentifiersResult
	if err := c.call(ctx, Request{Action: ActionGetTypeIdentifiers, Name: name}, &result); err != nil {
		return minimal, complete, err
	}
	if len(result.Minimal) == 0 || len(result.Complete) == 0 {
		return minimal, complete, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if minimal, err = xtypes.UnmarshalTypeIdentifier(result.Minimal); err != nil {
		return minimal, complete, fmt.Errorf("typelookup: minimal identifier of %s: %w", name, err)
	}
	if complete, err = xtypes.UnmarshalTypeIdentifier(result.Complete); err != nil {
		return minimal, complete, fmt.Errorf("typelookup: complete identifier of %s: %w", name, err)
	}
	return minimal, complete, nil
}

// Status requests the library summary.
func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var result StatusResult
	err := c.call(ctx, Request{Action: ActionStatus}, &result)
	return result, err
}

// call sends request and decodes the response data into result.
func (c *Client) call(ctx context.Context, request Request, result any) error {
	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("typelookup: calling %q on %s: %w", request.Action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: request.Action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("typelookup: decoding %q response: %w", request.Action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request Request) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(responseReadTimeout))
	// Abort the exchange when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
