// Package probe measures host latency with a fixed number of samples and
// classifies the result into a tier.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

const (
	DefaultCount   = 3
	DefaultTimeout = time.Second
)

// Pinger measures one round trip to host. Ordinary network failures (DNS,
// timeout, unreachable) are returned as errors, never as panics.
type Pinger interface {
	Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)

func (f PingerFunc) Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	return f(ctx, host, timeout)
}

type Options struct {
	Count      int           // samples per host, default 3
	Timeout    time.Duration // per sample, default 1s
	Classifier Classifier
}

type Prober struct {
	pinger     Pinger
	count      int
	timeout    time.Duration
	classifier Classifier
}

func New(p Pinger, opt Options) *Prober {
	if opt.Count <= 0 {
		opt.Count = DefaultCount
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	return &Prober{
		pinger:     p,
		count:      opt.Count,
		timeout:    opt.Timeout,
		classifier: opt.Classifier.withDefaults(),
	}
}

// Probe issues exactly Count samples against host, one after another. A
// sample that fails or exceeds the timeout is recorded as absent. There are
// no retries.
func (p *Prober) Probe(ctx context.Context, host string) model.ProbeResult {
	samples := make([]*time.Duration, p.count)
	for i := range samples {
		samples[i] = p.sample(ctx, host)
	}
	agg := Mean(samples)
	return model.ProbeResult{
		Host:      host,
		Samples:   samples,
		Aggregate: agg,
		Tier:      p.classifier.Classify(agg),
	}
}

func (p *Prober) sample(ctx context.Context, host string) *time.Duration {
	if ctx.Err() != nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d, err := p.pinger.Ping(sctx, host, p.timeout)
	if err != nil || d < 0 || d > p.timeout {
		return nil
	}
	return &d
}

type Method string

const (
	MethodICMP Method = "icmp"
	MethodTCP  Method = "tcp"
)

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodICMP:
		return MethodICMP, nil
	case MethodTCP:
		return MethodTCP, nil
	default:
		return "", fmt.Errorf("unknown probe method %q (want icmp|tcp)", s)
	}
}

// PingerConfig selects and configures a Pinger implementation.
type PingerConfig struct {
	Method     Method
	TCPPort    int  // tcp only, default 443
	Privileged bool // icmp only: raw sockets instead of datagram ICMP sockets
}

func NewPinger(cfg PingerConfig) (Pinger, error) {
	switch cfg.Method {
	case "", MethodICMP:
		return &ICMPPinger{Privileged: cfg.Privileged}, nil
	case MethodTCP:
		return &TCPPinger{Port: cfg.TCPPort}, nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", cfg.Method)
	}
}
