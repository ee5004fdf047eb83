// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command flynn-demo serves a few routes that fail on purpose and reports the
// failures to the configured incoming webhook.
//
//	ERROR_FLYNN_URL=https://hooks.slack.com/services/... flynn-demo -addr :8080
//
// Routes: /ok, /404, /500, /panic and /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacklok/errorflynn/config"
	"github.com/stacklok/errorflynn/env"
	"github.com/stacklok/errorflynn/errchain"
	"github.com/stacklok/errorflynn/httperr"
	"github.com/stacklok/errorflynn/notifier"
	"github.com/stacklok/errorflynn/recovery"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flynn-demo: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("flynn-demo", flag.ContinueOnError)
	addr := flags.String("addr", ":8080", "listen address")
	configPath := flags.String("config", config.DefaultPath(), "configuration file")
	url := flags.String("url", "", "incoming webhook URL (default $"+env.URLVar+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *url != "" {
		cfg.URL = *url
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}

	opts, err := cfg.Options(&env.OSReader{})
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts.Logger = logger
	opts.Registerer = reg

	n, err := notifier.New(opts)
	if err != nil {
		return err
	}

	app := newApp(n, logger)
	app.Mount("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              *addr,
		Handler:           recovery.Middleware(logger)(app),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server listening", "addr", *addr, config.URLKey, opts.URL,
		"environment", app.Setting(errchain.SettingEnv))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		n.Wait()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		n.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// loadConfig reads the file at path. A missing file yields an empty
// configuration so the demo runs on ERROR_FLYNN_URL alone.
func loadConfig(path string) (*config.File, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &config.File{}, nil
	}
	return cfg, err
}

func newApp(n *notifier.Notifier, logger *slog.Logger) *errchain.App {
	var opts []errchain.Option
	if e := os.Getenv("APP_ENV"); e != "" {
		opts = append(opts, errchain.WithSetting(errchain.SettingEnv, e))
	}
	app := errchain.New(opts...)

	app.Get("/ok", func(w http.ResponseWriter, _ *http.Request) error {
		_, err := w.Write([]byte("OK"))
		return err
	})
	app.Get("/404", func(_ http.ResponseWriter, _ *http.Request) error {
		return httperr.New("Not Found!", http.StatusNotFound)
	})
	app.Handle("/500", func(_ http.ResponseWriter, _ *http.Request) error {
		return pkgerrors.New("Oh noooooooo!")
	})
	app.Get("/panic", func(_ http.ResponseWriter, _ *http.Request) error {
		panic("kaboom")
	})

	app.UseError(n.Handler())
	app.UseError(func(err error, _ http.ResponseWriter, r *http.Request, next errchain.Next) {
		logger.Warn("request failed", "method", r.Method, "path", r.URL.Path,
			"status", httperr.Code(err), "error", err)
		next(err)
	})
	return app
}
