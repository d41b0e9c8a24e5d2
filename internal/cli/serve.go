package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/executor/docker"
	"github.com/sakif/codecraft/internal/executor/piston"
	"github.com/sakif/codecraft/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	if err := ensureDBDir(cfg.DBPath); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		return err
	}

	catalogue, err := config.LoadCatalogue(cfg.LanguagesFile)
	if err != nil {
		return err
	}

	// The sandbox is optional: without it the server still starts and
	// /api/execute answers 503.
	sandbox, closer := buildSandbox(cfg, catalogue, logger)
	if closer != nil {
		defer closer.Close()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set: authentication is disabled")
	}

	srv, err := server.New(cfg, logger, sandbox)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// buildSandbox picks the execution backend named by SANDBOX. A docker
// backend that cannot start is logged and left out rather than failing
// the whole server.
func buildSandbox(cfg *config.Config, catalogue *config.Catalogue, logger *slog.Logger) (executor.Executor, io.Closer) {
	switch cfg.Sandbox {
	case config.SandboxDocker:
		dcfg := docker.DefaultConfig()
		dcfg.Runtimes = docker.RuntimesFromCatalogue(catalogue)

		exec, err := docker.New(dcfg, logger)
		if err != nil {
			logger.Warn("Docker executor unavailable: /api/execute will return 503",
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return exec, exec
	default:
		logger.Info("using remote sandbox", slog.String("url", cfg.PistonURL))
		return piston.New(cfg.PistonURL, nil, logger), nil
	}
}

// ensureDBDir creates the directory holding the database file, like
// `mkdir -p`. In-memory databases need nothing.
func ensureDBDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
