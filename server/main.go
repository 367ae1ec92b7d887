package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // Display time zones without a system zoneinfo database

	"github.com/pkg/errors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	path := configPath()
	cfg, err := loadConfiguration(path)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, conns, err := connect(ctx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer conns.Close()

	s, err := newServer(cfg, logger, deps)
	if err != nil {
		return err
	}
	s.Activate()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", cfg.HTTPAddr, "backends", len(cfg.Backends))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	var runErr error
loop:
	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reload(s, path)
				continue
			}
			logger.Infow("Shutting down", "signal", sig.String())
			break loop
		case err := <-serveErr:
			runErr = errors.Wrap(err, "HTTP server failed")
			break loop
		}
	}

	if err := shutdownHTTP(httpServer); err != nil {
		logger.Warnw("HTTP shutdown did not complete cleanly", "error", err.Error())
	}
	if err := s.Deactivate(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// reload re-reads the configuration file and applies backend changes.
func reload(s *Server, path string) {
	cfg, err := loadConfiguration(path)
	if err != nil {
		s.logger.Errorw("Configuration reload failed, keeping current configuration", "path", path, "error", err.Error())
		return
	}
	if err := s.OnConfigurationChange(cfg); err != nil {
		s.logger.Errorw("Failed to apply reloaded configuration", "path", path, "error", err.Error())
	}
}
