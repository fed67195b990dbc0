package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/John-Robertt/subprobe-go/internal/config"
	"github.com/John-Robertt/subprobe-go/internal/fetch"
	"github.com/John-Robertt/subprobe-go/internal/httpapi"
	"github.com/John-Robertt/subprobe-go/internal/normalize"
	"github.com/John-Robertt/subprobe-go/internal/output"
	"github.com/John-Robertt/subprobe-go/internal/pipeline"
	"github.com/John-Robertt/subprobe-go/internal/probe"
	"github.com/John-Robertt/subprobe-go/internal/source"
)

// app ties one coordinator to its sink and the HTTP store. At most one run
// is active at a time.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	coord   *pipeline.Coordinator
	sink    output.Sink
	store   *httpapi.Store
	metrics *httpapi.Metrics

	busy atomic.Bool
	wg   sync.WaitGroup
	base context.Context
}

func newApp(cfg config.Config, log *slog.Logger, showProgress bool) (*app, error) {
	pinger, err := probe.NewPinger(cfg.PingerConfig())
	if err != nil {
		return nil, err
	}

	metrics := httpapi.NewMetrics()
	observers := pipeline.Observers{metrics}
	if showProgress {
		observers = append(observers, newProgress())
	}

	encs := make([]output.Encoding, 0, len(cfg.Output.Encodings))
	for _, e := range cfg.Output.Encodings {
		enc, err := output.ParseEncoding(e)
		if err != nil {
			return nil, err
		}
		encs = append(encs, enc)
	}

	return &app{
		cfg: cfg,
		log: log,
		coord: pipeline.New(
			fetch.New(cfg.FetchOptions()),
			normalize.New(cfg.NormalizeOptions()),
			probe.New(pinger, cfg.ProbeOptions()),
			pipeline.Options{
				SourceConcurrency: cfg.Pipeline.SourceConcurrency,
				ProbeConcurrency:  cfg.Pipeline.ProbeConcurrency,
				MaxPerSource:      cfg.Pipeline.MaxPerSource,
				Logger:            log,
				Observer:          observers,
			},
		),
		sink: &output.DirSink{
			Dir:       cfg.Output.Dir,
			PerSource: cfg.Output.PerSource,
			Encodings: encs,
			Logger:    log,
		},
		store:   &httpapi.Store{},
		metrics: metrics,
		base:    context.Background(),
	}, nil
}

func (a *app) loadSources() ([]string, error) {
	return source.Load(a.cfg.Input.File, a.cfg.InputFormat())
}

// runOnce loads the source list, runs the pipeline and writes artifacts.
// The store and metrics see the result even if writing fails.
func (a *app) runOnce(ctx context.Context) (*pipeline.Result, error) {
	sources, err := a.loadSources()
	if err != nil {
		return nil, err
	}
	res := a.coord.Run(ctx, sources)
	a.store.Set(res)
	a.metrics.ObserveRun(res)
	if err := a.sink.Write(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// start sets the context background runs inherit.
func (a *app) start(ctx context.Context) { a.base = ctx }

// Trigger implements httpapi.Runner.
func (a *app) Trigger() error {
	if !a.busy.CompareAndSwap(false, true) {
		return httpapi.ErrRunInProgress
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.busy.Store(false)
		if _, err := a.runOnce(a.base); err != nil {
			a.log.Error("run failed", "err", err)
		}
	}()
	return nil
}

// schedule triggers a run every interval until ctx is done. Ticks that land
// on a busy app are skipped.
func (a *app) schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.Trigger(); err != nil {
				a.log.Info("scheduled run skipped", "err", err)
			}
		}
	}
}

func (a *app) wait() { a.wg.Wait() }
