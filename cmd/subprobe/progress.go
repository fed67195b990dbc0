package main

import (
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

// progress renders probe progress. The total grows as sources finish
// normalizing, so the bar's max is raised on every ProbesQueued.
type progress struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	total int64
}

func newProgress() *progress {
	return &progress{
		bar: progressbar.NewOptions64(0,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("probing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("probes"),
			progressbar.OptionShowIts(),
		),
	}
}

func (p *progress) ProbesQueued(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += int64(n)
	p.bar.ChangeMax64(p.total)
}

func (p *progress) ProbeDone(model.ConfigRecord, model.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Add(1)
}

func (p *progress) SourceDone(pipeline.SourceResult) {}
