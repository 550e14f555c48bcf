// Package service wires configuration, logging, metrics and the connection
// engine into a runnable telemetry daemon.
package service

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oleksiiilienko/hostfacts/internal/config"
	"github.com/oleksiiilienko/hostfacts/internal/facts"
	"github.com/oleksiiilienko/hostfacts/internal/server"
	"github.com/oleksiiilienko/hostfacts/internal/telemetry"
)

var version = "dev"

// Daemon describes one telemetry service.
type Daemon struct {
	Name        string
	Defaults    func() *config.Config
	NewEndpoint func(facts.Provider, ...telemetry.Option) server.Endpoint
	// Facts defaults to facts.NewSystem().
	Facts facts.Provider
}

// Memory is the free-memory daemon.
var Memory = Daemon{
	Name:        telemetry.MemoryServiceName,
	Defaults:    config.MemoryDefaults,
	NewEndpoint: telemetry.NewMemoryEndpoint,
}

// Process is the priority and thread-list daemon.
var Process = Daemon{
	Name:        telemetry.ProcessServiceName,
	Defaults:    config.ProcessDefaults,
	NewEndpoint: telemetry.NewProcessEndpoint,
}

// Main runs d with the process arguments until SIGINT or SIGTERM and exits
// with status 1 on failure.
func Main(d Daemon) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := Run(ctx, d, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", d.Name, err)
		}
		os.Exit(1)
	}
}

// Run parses args, loads the config file and serves until ctx is cancelled.
// Logs go to logOut.
func Run(ctx context.Context, d Daemon, args []string, logOut io.Writer) error {
	fs := flag.NewFlagSet(d.Name, flag.ContinueOnError)
	fs.SetOutput(logOut)
	configPath := fs.String("config", "", "Path to config file (default ~/.hostfacts/"+d.Name+".yaml)")
	bindFlag := fs.String("bind", "", "Override bind address")
	portFlag := fs.Int("port", 0, "Override port")
	framingFlag := fs.String("framing", "", "Override message framing (length or raw)")
	adminFlag := fs.String("admin", "", "Override admin HTTP address, \"off\" disables it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath(d.Name)
	}
	cfg, err := config.Load(cfgPath, d.Defaults())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *bindFlag != "" {
		cfg.Bind = *bindFlag
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *framingFlag != "" {
		cfg.Framing = *framingFlag
	}
	switch *adminFlag {
	case "":
	case "off":
		cfg.AdminAddr = ""
	default:
		cfg.AdminAddr = *adminFlag
	}

	var level slog.LevelVar
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	level.Set(lvl)
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: &level}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider := d.Facts
	if provider == nil {
		provider = facts.NewSystem()
	}
	ep := d.NewEndpoint(provider, telemetry.WithOffset(cfg.UTCOffset))

	srv, err := server.New(cfg, ep, server.WithLogger(logger), server.WithRegistry(reg))
	if err != nil {
		return err
	}

	if w := watchConfig(cfgPath, d.Defaults(), srv, &level, logger); w != nil {
		w.Start()
		defer w.Stop()
	}

	logger.Info("starting", "service", d.Name, "version", version, "config", cfgPath)
	if err := srv.Run(ctx); err != nil {
		if errors.Is(err, server.ErrBindConflict) {
			logger.Error("another instance is already running", "service", d.Name, "port", cfg.Port, "err", err)
		}
		return err
	}
	return nil
}

// watchConfig applies idle_timeout and log_level changes from path. It returns
// nil when the config directory does not exist.
func watchConfig(path string, defaults *config.Config, srv *server.Server, level *slog.LevelVar, logger *slog.Logger) *config.Watcher {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, defaults, func(cfg *config.Config) {
		srv.SetIdleTimeout(cfg.IdleTimeout)
		if lvl, err := config.ParseLevel(cfg.LogLevel); err == nil {
			level.Set(lvl)
		}
		logger.Info("applied config", "idle_timeout", cfg.IdleTimeout, "log_level", cfg.LogLevel)
	}, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", "err", err)
		return nil
	}
	return w
}
