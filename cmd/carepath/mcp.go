package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/carepath/internal/auth"
	"github.com/mark3labs/carepath/internal/config"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/mcpserver"
	"github.com/mark3labs/carepath/internal/metrics"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/spf13/cobra"
)

var mcpFlags struct {
	http    string
	metrics string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the forms as MCP tools",
	Long: `Serve the forms as MCP tools so an agent can fill them in.

By default the tools are served over stdio. Use --http to serve streamable
HTTP on the given address instead. Each started flow gets its own session id
that the other tools take as their 'session' argument.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.http, "http", "", "Serve streamable HTTP on addr (e.g. 127.0.0.1:8765) instead of stdio")
	mcpCmd.Flags().StringVar(&mcpFlags.metrics, "metrics", "", "Serve Prometheus metrics on addr (default: metrics_addr from config)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recorder := metrics.New()
	metricsAddr := mcpFlags.metrics
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		go func() {
			if err := recorder.Serve(ctx, metricsAddr); err != nil {
				logger.Warn("Metrics server stopped: %v", err)
			}
		}()
	}

	session := &auth.Session{}
	if _, err := session.SignIn(cfg.UserEmail, ""); err != nil {
		logger.Warn("Sign-in skipped: %v", err)
	}

	opts := mcpserver.Options{
		Submitter: session.Submitter(config.DefaultUserEmail),
		Observer:  recorder.Observe,
		OnAck:     recorder.Acknowledged,
	}
	if cfg.Acknowledge {
		desk, closeDesk, err := submission.Open(ctx)
		if err != nil {
			return fmt.Errorf("failed to open submission desk: %w", err)
		}
		defer func() {
			if err := closeDesk(); err != nil {
				logger.Warn("Closing submission desk: %v", err)
			}
		}()
		opts.Desk = desk
	}

	srv := mcpserver.New(reg, opts)

	if mcpFlags.http == "" {
		return srv.ServeStdio()
	}
	return serveHTTP(ctx, cmd, srv, mcpFlags.http)
}

func serveHTTP(ctx context.Context, cmd *cobra.Command, srv *mcpserver.Server, addr string) error {
	if _, err := srv.Start(addr); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving MCP tools at %s\n", srv.URL())

	<-ctx.Done()
	fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down gracefully...")
	return srv.Stop()
}
