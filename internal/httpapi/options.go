package httpapi

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

// ErrRunInProgress is returned by Runner.Trigger while a run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner starts a run in the background. It must not block until the run
// finishes.
type Runner interface {
	Trigger() error
}

// Options wires the HTTP surface to the rest of the process.
type Options struct {
	Store   *Store
	Runner  Runner // nil disables POST /api/run
	Metrics *Metrics
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = &Store{}
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Store holds the latest finished run.
type Store struct {
	mu  sync.RWMutex
	res *pipeline.Result
}

func (s *Store) Set(res *pipeline.Result) {
	s.mu.Lock()
	s.res = res
	s.mu.Unlock()
}

// Latest returns the last stored result, or nil before the first run.
func (s *Store) Latest() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.res
}
