package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/okzk/sdnotify"
	"github.com/presbrey/ircd/irc/admind"
	"github.com/presbrey/ircd/irc/audit"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "ircd",
		Usage:   "single-threaded IRC server",
		Version: server.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file (yaml, toml or json)", Sources: cli.EnvVars("IRCD_CONFIG")},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "IRC listen port"},
			&cli.IntFlag{Name: "max-connections", Aliases: []string{"m"}, Usage: "maximum number of concurrent sessions"},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "admin", Usage: "enable the admin HTTP API"},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ircd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("max-connections") {
		cfg.Server.MaxConnections = int(cmd.Int("max-connections"))
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("admin") {
		cfg.Admin.Enabled = cmd.Bool("admin")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "source", cfg.Source, "listen", cfg.GetListenAddress())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(server.NewMetrics(registry)),
	}
	adminOpts := []admind.Option{admind.WithLogger(logger)}

	if cfg.Audit.Enabled {
		recorder, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN, cfg.Audit.Buffer, logger.With("component", "audit"))
		if err != nil {
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("closing audit log", "error", err)
			}
		}()
		registry.MustRegister(recorder.Collector())
		opts = append(opts, server.WithAuditor(recorder))
		adminOpts = append(adminOpts, admind.WithAuditLog(recorder))
	}

	srv, err := server.NewServer(cfg, opts...)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	var admin *admind.Server
	if cfg.Admin.Enabled {
		admin = admind.New(srv, cfg, registry, adminOpts...)
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error("admin API stopped", "error", err)
			}
		}()
	}

	if err := sdnotify.Ready(); err != nil {
		logger.Debug("systemd notification skipped", "error", err)
	}

	err = srv.Run(ctx)

	sdnotify.Stopping()
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin shutdown", "error", err)
		}
		cancel()
	}

	logger.Info("server stopped")
	return err
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.TimeOnly})
	}
	return slog.New(handler).With("server", cfg.Server.Name)
}
