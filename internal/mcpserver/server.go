// Package mcpserver exposes the wizard engine as MCP tools so agents can fill
// in claims and ROI requests step by step.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/mark3labs/mcp-go/server"
)

// Desk acknowledges and lists submissions. *submission.Desk satisfies it.
type Desk interface {
	Acknowledge(ctx context.Context, r wizard.Receipt, submitter string) (submission.Ack, error)
	List(ctx context.Context, flow string) ([]submission.Record, error)
}

// Options configures a Server.
type Options struct {
	Desk      Desk            // Optional; submissions are not acknowledged when nil
	Submitter string          // Attributed on acknowledgements
	Observer  wizard.Observer // Attached to every engine
	OnAck     func(flow string, err error)
}

// Server holds one engine per started flow session. Engines are not safe for
// concurrent use, so handlers touch them only under sessMu. mu guards the
// HTTP lifecycle and is never taken by a handler.
type Server struct {
	registry *forms.Registry
	opts     Options

	sessMu   sync.Mutex
	sessions map[string]*flowSession

	mu        sync.Mutex
	mcpServer *server.MCPServer
	stdServer *http.Server
	port      int
}

type flowSession struct {
	flow   *forms.Flow
	engine *wizard.Engine
}

// New creates a server with all tools registered.
func New(registry *forms.Registry, opts Options) *Server {
	s := &Server{
		registry: registry,
		opts:     opts,
		sessions: make(map[string]*flowSession),
	}
	s.mcpServer = server.NewMCPServer(
		"carepath",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	logger.Debug("Serving MCP tools over stdio")
	return server.ServeStdio(s.mcpServer)
}

// Start serves the tools over streamable HTTP on addr. An empty addr picks a
// random local port. It returns the bound port.
func (s *Server) Start(addr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	))
	s.stdServer = &http.Server{Handler: mux}

	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	logger.Info("MCP server listening on port %d", s.port)
	return s.port, nil
}

// Stop shuts the HTTP server down, waiting for in-flight tool calls. It is a
// no-op if Start was not called.
func (s *Server) Stop() error {
	s.mu.Lock()
	stdServer := s.stdServer
	s.stdServer = nil
	s.mu.Unlock()

	if stdServer == nil {
		return nil
	}
	if err := stdServer.Shutdown(context.Background()); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

// URL returns the HTTP URL for the MCP endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
