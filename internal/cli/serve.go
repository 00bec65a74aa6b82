package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rfpwatch/rfpwatch/internal/mcp"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP dashboard surface",
		Long: `Start the MCP server over stdio or HTTP, per configuration.

Stdio keeps stdout reserved for JSON-RPC; logs go to stderr. HTTP serves
the streamable MCP endpoint at /mcp plus a /health probe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	app, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	server := mcp.NewServer(mcp.Config{
		RFPs:   app.rfps,
		Sites:  app.sites,
		Outbox: app.queue,
		Logger: app.logger,
	})

	if app.cfg.Server.Transport == "stdio" {
		return runStdio(cmd.Context(), app.logger, server)
	}
	return runHTTP(app.logger, server, app.cfg.Server.Host, app.cfg.Server.Port)
}

func runStdio(parent context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run blocks until stdin closes or the context is canceled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return WrapExitError(ExitCommandError, "stdio server", err)
	}
	return nil
}

func runHTTP(logger *slog.Logger, server *sdkmcp.Server, host string, port int) error {
	handler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", handler)
	router.Handle("/mcp/", handler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "http server", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
