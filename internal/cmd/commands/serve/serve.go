// Package serve implements the "serve" subcommand: zero-config resolution
// of a workspace path, then the HTTP/WebSocket server, mirroring hermes's
// internal/cmd/commands/serve zero-config mode (minus its traditional
// config-file server path — this engine has exactly one mode).
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vincitamore/vitrum/internal/api"
	"github.com/vincitamore/vitrum/internal/cmd/base"
	"github.com/vincitamore/vitrum/internal/config"
	"github.com/vincitamore/vitrum/internal/server"
)

type Command struct {
	*base.Command

	flagBrowser bool
	flagPort    int
}

func (c *Command) Synopsis() string {
	return "Run the workspace server"
}

func (c *Command) Help() string {
	return `Usage: vitrum serve [path]

  Serve the document workspace at [path] (default: current directory).

    ./vitrum                 - serves the current directory
    ./vitrum serve ~/notes   - serves the given path
    ./vitrum serve --browser=false --port=9000

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet("serve")
	f.BoolVar(&c.flagBrowser, "browser", true, "automatically open a browser once the server is ready")
	f.IntVar(&c.flagPort, "port", 0, "port to listen on (default: PORT env var or 3847)")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}
	if c.flagPort != 0 {
		cfg.Port = c.flagPort
	}

	remaining := f.Args()
	if len(remaining) > 0 {
		workspacePath, err := filepath.Abs(remaining[0])
		if err != nil {
			c.UI.Error(fmt.Sprintf("error resolving workspace path: %v", err))
			return 1
		}
		cfg.OrgRoot = workspacePath
	}

	if _, err := os.Stat(cfg.OrgRoot); os.IsNotExist(err) {
		c.UI.Info(fmt.Sprintf("Initializing new workspace at %s", cfg.OrgRoot))
		if err := os.MkdirAll(cfg.OrgRoot, 0o755); err != nil {
			c.UI.Error(fmt.Sprintf("error initializing workspace: %v", err))
			return 1
		}
	} else {
		c.UI.Info(fmt.Sprintf("Using existing workspace at %s", cfg.OrgRoot))
	}

	logger := config.NewLogger(cfg)

	srv, err := server.New(cfg, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error building server: %v", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		c.UI.Error(fmt.Sprintf("error starting server: %v", err))
		return 1
	}
	defer srv.Stop()

	scheme := "http"
	if cfg.TLSEnabled() {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://localhost:%d", scheme, cfg.Port)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(srv),
	}

	printBanner(c.UI, cfg.OrgRoot, serverURL)

	if c.flagBrowser {
		go func() {
			if err := waitForServer(ctx, serverURL, 10*time.Second); err != nil {
				c.UI.Warn(fmt.Sprintf("server not ready, skipping browser launch: %v", err))
				return
			}
			if err := openBrowser(serverURL); err != nil {
				c.UI.Warn(fmt.Sprintf("could not open browser: %v", err))
			}
		}()
	}

	serveErrs := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
		close(serveErrs)
	}()

	select {
	case <-ctx.Done():
		c.UI.Info("Shutting down...")
	case err := <-serveErrs:
		if err != nil {
			c.UI.Error(fmt.Sprintf("server error: %v", err))
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		c.UI.Warn(fmt.Sprintf("error during shutdown: %v", err))
	}

	return 0
}

func printBanner(ui interface{ Info(string) }, workspacePath, serverURL string) {
	ui.Info("")
	ui.Info(fmt.Sprintf("  Workspace: %s", workspacePath))
	ui.Info(fmt.Sprintf("  Server:    %s", serverURL))
	ui.Info(fmt.Sprintf("  Live:      %s/ws", toWS(serverURL)))
	ui.Info("")
}

func toWS(serverURL string) string {
	switch {
	case len(serverURL) >= 5 && serverURL[:5] == "https":
		return "wss" + serverURL[5:]
	default:
		return "ws" + serverURL[4:]
	}
}
