// Package pipeline runs subscription sources through fetch, normalize,
// dedupe, host extraction and probing, and routes the surviving records
// into (tier, protocol) buckets.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/subprobe-go/internal/dedup"
	"github.com/John-Robertt/subprobe-go/internal/fetch"
	"github.com/John-Robertt/subprobe-go/internal/hostx"
	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/normalize"
	"github.com/John-Robertt/subprobe-go/internal/sub"
)

const (
	DefaultSourceConcurrency = 8
	DefaultProbeConcurrency  = 32
	DefaultMaxPerSource      = 1000
)

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type Normalizer interface {
	Normalize(line string) (model.ConfigRecord, error)
}

type Prober interface {
	Probe(ctx context.Context, host string) model.ProbeResult
}

type Options struct {
	SourceConcurrency int // default 8
	ProbeConcurrency  int // per source, default 32
	MaxPerSource      int // default 1000

	Logger   *slog.Logger // default slog.Default()
	Observer Observer
}

// Coordinator owns no state between runs; every Run starts from empty
// buckets.
type Coordinator struct {
	fetcher    Fetcher
	normalizer Normalizer
	prober     Prober
	opt        Options
	log        *slog.Logger
}

func New(f Fetcher, n Normalizer, p Prober, opt Options) *Coordinator {
	if opt.SourceConcurrency <= 0 {
		opt.SourceConcurrency = DefaultSourceConcurrency
	}
	if opt.ProbeConcurrency <= 0 {
		opt.ProbeConcurrency = DefaultProbeConcurrency
	}
	if opt.MaxPerSource <= 0 {
		opt.MaxPerSource = DefaultMaxPerSource
	}
	if opt.Observer == nil {
		opt.Observer = ObserverFuncs{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{fetcher: f, normalizer: n, prober: p, opt: opt, log: logger}
}

// run is the mutable state of one Run call.
type run struct {
	mu      sync.Mutex
	buckets map[model.BucketKey][]model.ConfigRecord
	routed  *dedup.Set
	hosts   *hostCache
}

// Run processes sources and returns the routed dataset. It never fails:
// per-source problems are recorded in Result.Sources and the run goes on.
// Canceling ctx stops fetches and probes early.
func (c *Coordinator) Run(ctx context.Context, sources []string) *Result {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: start,
		Sources:   make([]SourceResult, len(sources)),
	}
	st := &run{
		buckets: make(map[model.BucketKey][]model.ConfigRecord),
		routed:  dedup.NewSet(0),
		hosts:   newHostCache(c.prober),
	}

	log := c.log.With("run_id", res.RunID)
	log.Info("pipeline: run started", "sources", len(sources))

	var g errgroup.Group
	g.SetLimit(c.opt.SourceConcurrency)
	for i, u := range sources {
		g.Go(func() error {
			sr := c.processSource(ctx, log, st, i+1, u)
			res.Sources[i] = sr
			c.opt.Observer.SourceDone(sr)
			return nil
		})
	}
	_ = g.Wait()

	res.Buckets = st.buckets
	res.Duration = time.Since(start)
	res.Summary = summarize(res.Sources)

	log.Info("pipeline: run finished",
		"sources", res.Summary.Total,
		"processed", res.Summary.Processed,
		"skipped", res.Summary.Skipped,
		"good", res.Summary.Good,
		"warn", res.Summary.Warn,
		"bad", res.Summary.Bad,
		"routed", res.Summary.Routed,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res
}

func (c *Coordinator) processSource(ctx context.Context, log *slog.Logger, st *run, idx int, rawURL string) (sr SourceResult) {
	start := time.Now()
	sr = SourceResult{Index: idx, URL: rawURL, Rejected: map[string]int{}}
	log = log.With("source", idx)
	defer func() { sr.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		return skip(sr, ReasonCanceled, err)
	}

	// Fetching
	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		code := fetch.Code(err)
		if code == "" {
			code = "SOURCE_UNREACHABLE"
		}
		log.Warn("pipeline: source skipped", "url", rawURL, "reason", code, "err", err)
		return skip(sr, code, err)
	}

	// Normalizing
	lines, err := sub.Lines(rawURL, body)
	if err != nil {
		code := "SUB_EMPTY"
		var pe *sub.ParseError
		if errors.As(err, &pe) {
			code = pe.AppError.Code
		}
		log.Warn("pipeline: source skipped", "url", rawURL, "reason", code)
		return skip(sr, code, err)
	}
	sr.Lines = len(lines)

	records := make([]model.ConfigRecord, 0, len(lines))
	for _, line := range lines {
		rec, err := c.normalizer.Normalize(line)
		if err != nil {
			reason := string(normalize.ReasonOf(err))
			if reason == "" {
				reason = string(normalize.ReasonMalformed)
			}
			sr.Rejected[reason]++
			log.Debug("pipeline: line dropped", "reason", reason, "err", err)
			continue
		}
		records = append(records, rec)
	}

	// Deduplicating
	unique := dedup.Dedupe(records)
	sr.Duplicates = len(records) - len(unique)
	if len(unique) == 0 {
		log.Warn("pipeline: source skipped", "url", rawURL, "reason", ReasonNoValidRecords, "lines", sr.Lines)
		return skip(sr, ReasonNoValidRecords, nil)
	}

	type target struct {
		rec  model.ConfigRecord
		host string
	}
	targets := make([]target, 0, len(unique))
	for _, rec := range unique {
		ht, ok := hostx.Extract(rec)
		if !ok {
			sr.Unresolvable++
			log.Debug("pipeline: no host in record", "protocol", rec.Protocol)
			continue
		}
		targets = append(targets, target{rec: rec, host: ht.Host})
	}

	// Probing: results land in index-addressed slots, so no locking.
	c.opt.Observer.ProbesQueued(len(targets))
	results := make([]model.ProbeResult, len(targets))
	var g errgroup.Group
	g.SetLimit(c.opt.ProbeConcurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = st.hosts.probe(ctx, t.host)
			c.opt.Observer.ProbeDone(t.rec, results[i])
			return nil
		})
	}
	_ = g.Wait()
	sr.Probed = len(targets)

	var good, warn []RoutedRecord
	for i, t := range targets {
		rr := RoutedRecord{Record: t.rec, Probe: results[i]}
		switch results[i].Tier {
		case model.TierGood:
			sr.Good++
			good = append(good, rr)
		case model.TierWarn:
			sr.Warn++
			warn = append(warn, rr)
		default:
			sr.Bad++
		}
	}

	contribution := append(good, warn...)
	if len(contribution) > c.opt.MaxPerSource {
		sr.Truncated = len(contribution) - c.opt.MaxPerSource
		contribution = contribution[:c.opt.MaxPerSource]
	}

	// Bucketed
	sr.Kept = contribution
	sr.Routed = st.merge(contribution)
	sr.Status = StatusProcessed

	log.Info("pipeline: source done",
		"url", rawURL,
		"lines", sr.Lines,
		"malformed", sr.Malformed(),
		"duplicates", sr.Duplicates,
		"unresolvable", sr.Unresolvable,
		"good", sr.Good,
		"warn", sr.Warn,
		"bad", sr.Bad,
		"routed", len(sr.Routed),
	)
	return sr
}

// merge appends the records not yet routed by any source and returns them.
func (st *run) merge(in []RoutedRecord) []RoutedRecord {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]RoutedRecord, 0, len(in))
	for _, rr := range in {
		if !st.routed.Add(rr.Record.Canonical) {
			continue
		}
		key := model.BucketKey{Tier: rr.Probe.Tier, Protocol: rr.Record.Protocol}
		st.buckets[key] = append(st.buckets[key], rr.Record)
		out = append(out, rr)
	}
	return out
}

func skip(sr SourceResult, reason string, err error) SourceResult {
	sr.Status = StatusSkipped
	sr.Reason = reason
	sr.Err = err
	return sr
}

func summarize(sources []SourceResult) Summary {
	s := Summary{Total: len(sources)}
	for _, sr := range sources {
		if sr.Status == StatusProcessed {
			s.Processed++
		} else {
			s.Skipped++
		}
		s.Lines += sr.Lines
		s.Malformed += sr.Malformed()
		s.Duplicates += sr.Duplicates
		s.Unresolvable += sr.Unresolvable
		s.Probed += sr.Probed
		s.Good += sr.Good
		s.Warn += sr.Warn
		s.Bad += sr.Bad
		s.Truncated += sr.Truncated
		s.Routed += len(sr.Routed)
	}
	return s
}
