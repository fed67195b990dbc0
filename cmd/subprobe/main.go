package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/John-Robertt/subprobe-go/internal/config"
	"github.com/John-Robertt/subprobe-go/internal/httpapi"
	"github.com/John-Robertt/subprobe-go/internal/output"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("subprobe", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (optional)")
	input := fs.String("input", "", "subscription list file (overrides input.file)")
	out := fs.String("out", "", "output directory (overrides output.dir)")
	listen := fs.String("listen", "", "serve the HTTP API on this address and keep running")
	interval := fs.Duration("interval", 0, "with -listen: re-run every interval (0 = only on POST /api/run)")
	progress := fs.Bool("progress", false, "show a probe progress bar on stderr")
	logLevel := fs.String("log-level", "", "debug|info|warn|error (overrides log.level)")
	healthcheck := fs.String("healthcheck", "", "probe /healthz of a running server at this address and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *healthcheck != "" {
		u, err := deriveHealthzURL(*healthcheck)
		if err == nil {
			err = runHealthcheck(u, 3*time.Second)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "healthcheck:", err)
			return 1
		}
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["input"] {
		cfg.Input.File = *input
	}
	if set["out"] {
		cfg.Output.Dir = *out
	}
	if set["listen"] {
		cfg.Server.Listen = *listen
	}
	if set["interval"] {
		cfg.Server.Interval = *interval
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger, *progress)
	if err != nil {
		logger.Error("setup failed", "err", err)
		return 1
	}

	// The source list must be loadable before anything else happens.
	if _, err := a.loadSources(); err != nil {
		logger.Error("cannot load sources", "file", cfg.Input.File, "err", err)
		return 1
	}

	if cfg.Server.Listen == "" {
		res, err := a.runOnce(ctx)
		if err != nil {
			logger.Error("run failed", "err", err)
			return 1
		}
		fmt.Print(output.Report(res))
		return 0
	}

	return serve(ctx, a, cfg)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func serve(ctx context.Context, a *app, cfg config.Config) int {
	log := a.log
	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: httpapi.NewHandler(httpapi.Options{
			Store:   a.store,
			Runner:  a,
			Metrics: a.metrics,
			Logger:  log,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	log.Info("listening", "addr", "http://"+cfg.Server.Listen)

	// Runs triggered over HTTP inherit ctx, so it is set before serving.
	a.start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	_ = a.Trigger()
	go a.schedule(ctx, cfg.Server.Interval)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("graceful shutdown failed", "err", err)
			_ = srv.Close()
		}
		a.wait()

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			return 1
		}
	}
	return 0
}
