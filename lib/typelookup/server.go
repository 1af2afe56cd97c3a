// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/xcdr/lib/codec"
	"github.com/bureau-foundation/xcdr/lib/typelib"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

const (
	// readTimeout bounds the wait for a request after connecting.
	readTimeout = 30 * time.Second

	// writeTimeout bounds writing the response.
	writeTimeout = 10 * time.Second

	// maxRequestSize bounds one request. The largest legal request is
	// MaxIdentifiersPerRequest plain identifiers.
	maxRequestSize = 1024 * 1024
)

// Library is the store a Server answers from. *typelib.Library
// implements it.
type Library interface {
	Get(ctx context.Context, id xtypes.TypeIdentifier) (xtypes.TypeObject, error)
	Identifiers(ctx context.Context, name string) (minimal, complete xtypes.TypeIdentifier, err error)
	Stats(ctx context.Context) (typelib.Stats, error)
}

// actionFunc handles one decoded request and returns the value placed
// in the response's data field.
type actionFunc func(ctx context.Context, request Request) (any, error)

// ServerConfig holds the parameters of a Server. SocketPath and
// Library are required.
type ServerConfig struct {
	SocketPath string
	Library    Library

	// Logger receives connection and request events. Nil discards
	// them.
	Logger *slog.Logger
}

// Server answers lookup requests on a Unix socket, one request per
// connection.
type Server struct {
	socketPath string
	library    Library
	handlers   map[string]actionFunc
	logger     *slog.Logger
	ready      chan struct{}

	activeConnections sync.WaitGroup
}

// NewServer validates cfg and registers the lookup actions.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("typelookup: SocketPath is required")
	}
	if cfg.Library == nil {
		return nil, fmt.Errorf("typelookup: Library is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	server := &Server{
		socketPath: cfg.SocketPath,
		library:    cfg.Library,
		logger:     logger,
		ready:      make(chan struct{}),
	}
	server.handlers = map[string]actionFunc{
		ActionGetTypeObjects:     server.getTypeObjects,
		ActionGetTypeIdentifiers: server.getTypeIdentifiers,
		ActionStatus:             server.status,
	}
	return server, nil
}

// Ready is closed once Serve is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve accepts connections until ctx is cancelled, then waits for
// requests in progress. A stale socket file at the path is replaced;
// the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("typelookup: removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("typelookup: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("type lookup server listening", "path", s.socketPath)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	s.logger.Info("type lookup server stopped", "path", s.socketPath)
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var request Request
	if err := codec.Unmarshal(raw, &request); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if request.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}
	handler, exists := s.handlers[request.Action]
	if !exists {
		if notation, err := codec.Diagnose(raw); err == nil {
			s.logger.Debug("unknown action", "action", request.Action, "request", notation)
		}
		s.writeError(conn, fmt.Sprintf("unknown action %q", request.Action))
		return
	}

	result, err := handler(ctx, request)
	if err != nil {
		s.logger.Debug("action failed", "action", request.Action, "error", err)
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

func (s *Server) getTypeObjects(ctx context.Context, request Request) (any, error) {
	if len(request.Identifiers) == 0 {
		return nil, errors.New("missing required field: identifiers")
	}
	if len(request.Identifiers) > MaxIdentifiersPerRequest {
		return nil, fmt.Errorf("%d identifiers requested, at most %d allowed",
			len(request.Identifiers), MaxIdentifiersPerRequest)
	}

	var result TypeObjectsResult
	for _, encoded := range request.Identifiers {
		id, err := xtypes.UnmarshalTypeIdentifier(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding identifier: %w", err)
		}
		object, err := s.library.Get(ctx, id)
		if errors.Is(err, typelib.ErrNotFound) {
			result.Missing = append(result.Missing, encoded)
			continue
		}
		if err != nil {
			s.logger.Error("type object lookup failed", "type_identifier", id.String(), "error", err)
			return nil, fmt.Errorf("looking up %s: %w", id, err)
		}
		payload, err := xtypes.MarshalTypeObject(object)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", id, err)
		}
		result.Objects = append(result.Objects, TypeObjectEntry{Identifier: encoded, Object: payload})
	}
	s.logger.Debug("type objects served",
		"requested", len(request.Identifiers),
		"found", len(result.Objects),
		"missing", len(result.Missing),
	)
	return result, nil
}

func (s *Server) getTypeIdentifiers(ctx context.Context, request Request) (any, error) {
	if request.Name == "" {
		return nil, errors.New("missing required field: name")
	}
	var result TypeIdentifiersResult
	minimal, complete, err := s.library.Identifiers(ctx, request.Name)
	if errors.Is(err, typelib.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	if result.Minimal, err = xtypes.MarshalTypeIdentifier(minimal); err != nil {
		return nil, err
	}
	if result.Complete, err = xtypes.MarshalTypeIdentifier(complete); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) status(ctx context.Context, _ Request) (any, error) {
	stats, err := s.library.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return StatusResult{
		Objects:      stats.Objects,
		Names:        stats.Names,
		PayloadBytes: stats.PayloadBytes,
		StoredBytes:  stats.StoredBytes,
	}, nil
}

func (s *Server) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
