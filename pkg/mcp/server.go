// Package mcp serves read-mostly inspection tools for the cache and the
// mutation journal over MCP on stdio.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
)

const maxRequestSize = 1 << 20

var (
	errUnknownTool     = errors.New("unknown tool")
	errInvalidArgs     = errors.New("invalid arguments")
	errJournalDisabled = errors.New("mutation journal is not configured")
)

// Cache is the part of *cache.Cache the inspector needs.
type Cache interface {
	Stats(ctx context.Context) (models.CacheStats, error)
	Keys(ctx context.Context) ([]cache.Key, error)
	Lookup(ctx context.Context, key cache.Key) (json.RawMessage, bool)
	ClearAll(ctx context.Context)
	ClearExpired(ctx context.Context) int
}

// Journal is the read side of the mutation journal.
type Journal interface {
	Query(ctx context.Context, opts models.JournalQueryOpts) ([]models.MutationRecord, error)
	Stats(ctx context.Context) ([]models.JournalStat, error)
}

// Server answers MCP requests about one cache and, optionally, one journal.
type Server struct {
	cache   Cache
	journal Journal
	version string
	logger  *slog.Logger
	tools   map[string]*tool
}

// New creates a Server. j may be nil when journaling is off.
func New(c Cache, j Journal, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cache:   c,
		journal: j,
		version: version,
		logger:  logger,
		tools:   make(map[string]*tool, len(toolset)),
	}
	for _, t := range toolset {
		s.tools[t.Name] = t
	}
	return s
}

// Run answers one request per line of r until r is exhausted or ctx ends.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRequestSize)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

// handle returns nil for notifications.
func (s *Server) handle(ctx context.Context, line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("mcp request unreadable", "error", err)
		return fail(nil, &rpcError{Code: codeParseError, Message: "parse error"})
	}

	result, err := s.dispatch(ctx, &req)
	if req.isNotification() {
		return nil
	}
	if err != nil {
		s.logger.Debug("mcp request failed", "method", req.Method, "error", err)
		return fail(req.ID, err)
	}
	return reply(req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req *request) (any, error) {
	switch req.Method {
	case "initialize":
		return initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo{Name: "iopps-sync", Version: s.version},
			Instructions:    "Inspect the IOPPS offline cache and the log of optimistic mutation attempts.",
		}, nil
	case "notifications/initialized", "ping":
		return struct{}{}, nil
	case "tools/list":
		return toolList{Tools: toolset}, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "unknown method: " + req.Method}
	}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (toolResult, error) {
	var call toolCall
	if err := json.Unmarshal(params, &call); err != nil || call.Name == "" {
		return toolResult{}, &rpcError{Code: codeInvalidParams, Message: "invalid params"}
	}

	t, ok := s.tools[call.Name]
	if !ok {
		return failed(fmt.Errorf("%w: %s", errUnknownTool, call.Name)), nil
	}

	start := time.Now()
	res, err := t.call(ctx, s, call.Arguments)
	if err != nil {
		s.logger.Warn("mcp tool failed", "tool", call.Name, "error", err)
		return failed(err), nil
	}
	s.logger.Debug("mcp tool call", "tool", call.Name, "elapsed", time.Since(start))
	return res, nil
}
