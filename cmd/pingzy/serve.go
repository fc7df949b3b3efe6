package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingzy/internal/config"
	"github.com/hamed0406/pingzy/internal/httpapi"
	apimw "github.com/hamed0406/pingzy/internal/httpapi/middleware"
	"github.com/hamed0406/pingzy/internal/logging"
	"github.com/hamed0406/pingzy/internal/monitor"
	"github.com/hamed0406/pingzy/internal/notify"
	"github.com/hamed0406/pingzy/internal/probe"
	"github.com/hamed0406/pingzy/internal/repo"
	"github.com/hamed0406/pingzy/internal/repo/memory"
	"github.com/hamed0406/pingzy/internal/repo/postgres"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start monitoring",
	Long: `Start monitoring the configured URLs.

Configuration is layered: defaults, then the config file (if given), then
PINGZY_* environment variables, then flags. The process runs until it
receives SIGINT or SIGTERM; probes already in flight are allowed to finish.

Example:
  pingzy serve -c pingzy.yaml
  PINGZY_SLACK_URL=https://hooks.slack.com/... pingzy serve --url https://example.com --interval 1`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	registerServeFlags(serveCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.StringArray("url", nil, "URL to monitor (repeatable, replaces configured urls)")
	f.Int("interval", 0, "minutes between check cycles")
	f.String("slack-url", "", "Slack incoming webhook URL")
	f.Bool("verbose", false, "enable debug logging")
	f.String("log-file", "", "also write logs to this file (rotated)")
	f.String("api-addr", "", "listen address for the status API, e.g. :8080")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.TmpDir, 0o755); err != nil {
		return fmt.Errorf("create tmp dir %q: %w", cfg.TmpDir, err)
	}

	logger, err := logging.NewLogger(logging.Options{File: cfg.LogFile, Verbose: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// loadConfig layers flags over config.Load. Only flags set on the command
// line override.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if f.Changed("url") {
		cfg.URLs, _ = f.GetStringArray("url")
	}
	if f.Changed("interval") {
		cfg.Interval, _ = f.GetInt("interval")
	}
	if f.Changed("slack-url") {
		cfg.Slack.URL, _ = f.GetString("slack-url")
	}
	if f.Changed("verbose") {
		cfg.Verbose, _ = f.GetBool("verbose")
	}
	if f.Changed("log-file") {
		cfg.LogFile, _ = f.GetString("log-file")
	}
	if f.Changed("api-addr") {
		cfg.API.Addr, _ = f.GetString("api-addr")
	}
	return cfg, nil
}

// serve wires the monitor and, when configured, the status API, then blocks
// until ctx is done or the API fails.
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	var history repo.ResultStore = memory.New(memory.DefaultRetention)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer pg.Close()
		history = pg
	}

	checker := probe.NewHTTPChecker(probe.DefaultTimeout)
	checker.DiagnoseDNS = true

	dispatcher := notify.NewDispatcher(notify.NewSlack(cfg.Slack.URL), logger)
	if !dispatcher.Enabled() {
		logger.Warn("slack webhook not configured, notifications disabled")
	}

	mon, err := monitor.New(logger, cfg.URLs, checker, dispatcher, history, monitor.Config{
		Interval:            cfg.CheckInterval(),
		MaxConcurrentChecks: cfg.MaxConcurrentChecks,
		Identity: notify.Identity{
			Channel:  cfg.Slack.Channel,
			Username: cfg.Slack.Username,
			Icon:     cfg.Slack.Icon,
		},
	})
	if err != nil {
		return err
	}

	apiErr := make(chan error, 1)
	var srv *http.Server
	if cfg.API.Addr != "" {
		api := httpapi.NewServer(logger, mon, history)
		keys := apimw.Keys{Public: cfg.API.PublicKeys, Admin: cfg.API.AdminKeys}
		srv = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.Router(keys, cfg.API.AllowedOrigins, cfg.API.RPM, cfg.API.Burst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("api_listen", zap.String("addr", cfg.API.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				apiErr <- fmt.Errorf("status api: %w", err)
			}
		}()
	}

	mon.Start(ctx)

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err = <-apiErr:
		logger.Error("api_failed", zap.Error(err))
	}

	mon.Stop()
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, srv.Shutdown(sctx))
	}
	waitNotifications(dispatcher, logger)

	logger.Info("shutdown complete")
	return err
}

func waitNotifications(d *notify.Dispatcher, logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out waiting for notifications",
			zap.Duration("timeout", shutdownTimeout))
	}
}
