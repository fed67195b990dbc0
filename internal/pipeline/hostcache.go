package pipeline

import (
	"context"
	"sync"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

// hostCache probes each host at most once per run. Concurrent callers for
// the same host wait for the first probe to finish.
type hostCache struct {
	prober Prober

	mu      sync.Mutex
	entries map[string]*hostEntry
}

type hostEntry struct {
	done chan struct{}
	res  model.ProbeResult
}

func newHostCache(p Prober) *hostCache {
	return &hostCache{prober: p, entries: make(map[string]*hostEntry)}
}

func (c *hostCache) probe(ctx context.Context, host string) model.ProbeResult {
	c.mu.Lock()
	e, ok := c.entries[host]
	if !ok {
		e = &hostEntry{done: make(chan struct{})}
		c.entries[host] = e
	}
	c.mu.Unlock()

	if !ok {
		e.res = c.prober.Probe(ctx, host)
		close(e.done)
		return e.res
	}

	select {
	case <-e.done:
		return e.res
	case <-ctx.Done():
		return model.ProbeResult{Host: host, Tier: model.TierBad}
	}
}
