package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/verdant-ai/verdant/pkg/identify"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
)

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// AttemptQuerier searches the provider attempt log.
type AttemptQuerier interface {
	Query(ctx context.Context, opts models.AttemptQueryOpts) ([]models.ProviderAttempt, error)
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	client      *identify.Client
	cache       CacheStatter
	attempts    AttemptQuerier
	defaultUser string
	version     string
}

// Option configures a Server.
type Option func(*Server)

// WithCacheStats enables the verdant_cache_stats tool.
func WithCacheStats(c CacheStatter) Option {
	return func(s *Server) { s.cache = c }
}

// WithAttempts enables the verdant_attempts tool.
func WithAttempts(a AttemptQuerier) Option {
	return func(s *Server) { s.attempts = a }
}

// New creates a new MCP Server. Tools called without a user act for defaultUser.
func New(client *identify.Client, defaultUser, version string, opts ...Option) *Server {
	s := &Server{
		client:      client,
		defaultUser: defaultUser,
		version:     version,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, *errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != jsonrpcVersion {
		return errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "verdant", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) (resp *Response) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	log := logger.WithField("tool", params.Name)
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("mcp tool panicked")
			resp = errorResponse(req.ID, CodeInternalError, "internal error")
		}
	}()
	log.Debug("mcp tool call")
	return resultResponse(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) user(name string) string {
	if name != "" {
		return name
	}
	return s.defaultUser
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.WithError(err).Error("mcp: marshal response")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		logger.WithError(err).Error("mcp: write response")
	}
}
