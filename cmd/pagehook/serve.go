package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pagehook/internal/preview"
)

const defaultAddr = ":8081"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview service",
		Long: `Serve runs the preview service. It fetches a page (statically or in
headless Chrome), applies the hooks and returns the rewritten HTML on /preview
or a JSON report on /inspect.

PORT overrides --addr. Defaults for the other flags come from
PAGEHOOK_SITES_DIR, PAGEHOOK_CACHE_TTL and PAGEHOOK_PREFIX.

Examples:
  pagehook serve
  pagehook serve --addr 127.0.0.1:9000 --sites ./sites --ttl 1m`,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", defaultAddr, "listen address, e.g. :81 or 0.0.0.0:8081")
	cmd.Flags().String("sites", "", "directory of per-host YAML site configs")
	cmd.Flags().Duration("ttl", 0, "preview cache TTL (0 keeps the default)")
	cmd.Flags().String("prefix", "", "proxy path prefix for rewritten URLs")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.New(cmd.OutOrStdout(), "", log.LstdFlags|log.Lmicroseconds)
	cfg.Logger = logger

	handler := preview.New(cfg)
	defer handler.Close()

	verbose, _ := cmd.Flags().GetBool("verbose")
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		// Conservative timeouts to avoid slowloris and leaked connections blocking the server
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.New(cmd.ErrOrStderr(), "HTTPERR ", log.LstdFlags|log.Lmicroseconds),
	}
	if verbose {
		srv.ConnState = func(c net.Conn, s http.ConnState) {
			logger.Printf("CONN %s %s", s.String(), c.RemoteAddr())
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Println("Listening on", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serveConfig layers the serve flags over the environment defaults.
func serveConfig(cmd *cobra.Command) (preview.Config, error) {
	cfg := preview.DefaultConfig()
	sites, err := cmd.Flags().GetString("sites")
	if err != nil {
		return cfg, err
	}
	if sites != "" {
		cfg.SitesDir = sites
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return cfg, err
	}
	if ttl > 0 {
		cfg.CacheTTL = ttl
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return cfg, err
	}
	if prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg, nil
}
