package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/karhu-io/aclscan/acl"
	"github.com/karhu-io/aclscan/config"
	"github.com/karhu-io/aclscan/policy"
	"github.com/karhu-io/aclscan/report"
	"github.com/karhu-io/aclscan/scanner"
	"github.com/karhu-io/aclscan/server"
	"github.com/karhu-io/aclscan/storage"
	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/wal"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDebug      bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the permission audit web service",
	Long: `Run aclscan as an HTTP service.

The service accepts folder paths, scans the folder and its immediate
subdirectories for access-control entries, writes a timestamped CSV
report, and serves reports for download.

Endpoints:
- POST /submit_link for scan requests
- GET  /download/{filename} for report downloads
- GET  /reports for scan history
- GET  /healthz and /metrics for operations`,
	Example: `  aclscan serve                      # Run with defaults on :8000
  aclscan serve --addr :9000         # Custom listen address
  aclscan serve --config aclscan.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Config file path (YAML)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "aclscan",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTELEndpoint:   cfg.Telemetry.OTELEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	logger := telemetry.NewLogger("serve")

	srv, cleanup, err := buildServer(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := srv.HTTPServer()

	var g run.Group
	g.Add(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, os.Kill))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

func loadServeConfig() (*config.Config, error) {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	return &cfg, nil
}

// buildServer wires the scan pipeline from config. The returned cleanup
// closes the store and WAL.
func buildServer(ctx context.Context, cfg config.Config, logger *telemetry.Logger) (*server.Server, func(), error) {
	sc, err := scanner.New(acl.NewOSProvider(), scanner.WithTimeout(cfg.ScanTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	reports, err := report.NewWriter(cfg.ReportsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report writer: %w", err)
	}

	store, err := storage.Open(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	audit, err := wal.Open(cfg.WALDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	policies, err := loadPolicies(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = audit.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := audit.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close audit log")
		}
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}
	return server.New(cfg, sc, reports, store, audit, policies), cleanup, nil
}

func loadPolicies(ctx context.Context, cfg config.Config, logger *telemetry.Logger) (*policy.Engine, error) {
	if !cfg.Policy.Enabled {
		return nil, nil
	}

	engine := policy.NewEngine()
	if err := engine.LoadDefault(ctx); err != nil {
		return nil, fmt.Errorf("failed to load default policy: %w", err)
	}
	for _, file := range cfg.Policy.Files {
		code, err := os.ReadFile(file) // #nosec G304 -- operator-supplied policy path
		if err != nil {
			return nil, fmt.Errorf("failed to read policy %s: %w", file, err)
		}
		if err := engine.LoadPolicy(ctx, file, string(code)); err != nil {
			return nil, fmt.Errorf("failed to load policy %s: %w", file, err)
		}
		logger.Info().Str("policy", file).Msg("policy loaded")
	}
	return engine, nil
}
