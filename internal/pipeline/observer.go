package pipeline

import "github.com/John-Robertt/subprobe-go/internal/model"

// Observer is notified as a run progresses. Methods are called from
// worker goroutines and must be safe for concurrent use.
type Observer interface {
	// ProbesQueued reports how many probes a source is about to issue.
	ProbesQueued(n int)
	ProbeDone(rec model.ConfigRecord, res model.ProbeResult)
	SourceDone(sr SourceResult)
}

// ObserverFuncs adapts optional callbacks to Observer; nil fields are
// skipped.
type ObserverFuncs struct {
	OnProbesQueued func(n int)
	OnProbeDone    func(rec model.ConfigRecord, res model.ProbeResult)
	OnSourceDone   func(sr SourceResult)
}

func (o ObserverFuncs) ProbesQueued(n int) {
	if o.OnProbesQueued != nil {
		o.OnProbesQueued(n)
	}
}

func (o ObserverFuncs) ProbeDone(rec model.ConfigRecord, res model.ProbeResult) {
	if o.OnProbeDone != nil {
		o.OnProbeDone(rec, res)
	}
}

func (o ObserverFuncs) SourceDone(sr SourceResult) {
	if o.OnSourceDone != nil {
		o.OnSourceDone(sr)
	}
}

// Observers fans every notification out to each of its members in order.
type Observers []Observer

func (obs Observers) ProbesQueued(n int) {
	for _, o := range obs {
		o.ProbesQueued(n)
	}
}

func (obs Observers) ProbeDone(rec model.ConfigRecord, res model.ProbeResult) {
	for _, o := range obs {
		o.ProbeDone(rec, res)
	}
}

func (obs Observers) SourceDone(sr SourceResult) {
	for _, o := range obs {
		o.SourceDone(sr)
	}
}
