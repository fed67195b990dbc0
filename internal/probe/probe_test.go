package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

func scripted(seq ...any) (Pinger, *atomic.Int32) {
	var calls atomic.Int32
	p := PingerFunc(func(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(seq) {
			return 0, errors.New("unexpected sample")
		}
		switch v := seq[i].(type) {
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case error:
			return 0, v
		}
		return 0, errors.New("bad script")
	})
	return p, &calls
}

func TestProbe_AllSamplesGood(t *testing.T) {
	p, calls := scripted(100, 120, 140)
	res := New(p, Options{}).Probe(context.Background(), "example.com")
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want=3", calls.Load())
	}
	if res.Aggregate == nil || *res.Aggregate != 120*time.Millisecond {
		t.Fatalf("aggregate=%v, want=120ms", res.Aggregate)
	}
	if res.Tier != model.TierGood {
		t.Fatalf("tier=%q, want=good", res.Tier)
	}
	if res.Host != "example.com" || len(res.Samples) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestProbe_PartialFailureIsWarn(t *testing.T) {
	p, _ := scripted(200, 250, errors.New("timeout"))
	res := New(p, Options{}).Probe(context.Background(), "h")
	if res.Samples[2] != nil {
		t.Fatalf("failed sample must be absent")
	}
	if res.Aggregate == nil || *res.Aggregate != 225*time.Millisecond {
		t.Fatalf("aggregate=%v, want=225ms", res.Aggregate)
	}
	if res.Tier != model.TierWarn {
		t.Fatalf("tier=%q, want=warn", res.Tier)
	}
}

func TestProbe_AllFailIsBad(t *testing.T) {
	e := errors.New("unreachable")
	p, calls := scripted(e, e, e)
	res := New(p, Options{}).Probe(context.Background(), "h")
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want=3 (no retries)", calls.Load())
	}
	if res.Aggregate != nil {
		t.Fatalf("aggregate=%v, want=nil", *res.Aggregate)
	}
	if res.Tier != model.TierBad || res.Succeeded() != 0 {
		t.Fatalf("tier=%q succeeded=%d, want bad/0", res.Tier, res.Succeeded())
	}
}

func TestProbe_SampleOverTimeoutIsAbsent(t *testing.T) {
	p, _ := scripted(50, 2000, 70)
	res := New(p, Options{Timeout: time.Second}).Probe(context.Background(), "h")
	if res.Samples[1] != nil {
		t.Fatalf("over-timeout sample must be absent")
	}
	if res.Aggregate == nil || *res.Aggregate != 60*time.Millisecond {
		t.Fatalf("aggregate=%v, want=60ms", res.Aggregate)
	}
}

func TestProbe_CustomCount(t *testing.T) {
	p, calls := scripted(10, 10, 10, 10, 10)
	res := New(p, Options{Count: 5}).Probe(context.Background(), "h")
	if calls.Load() != 5 || len(res.Samples) != 5 {
		t.Fatalf("calls=%d samples=%d, want=5", calls.Load(), len(res.Samples))
	}
}

func TestProbe_CanceledContextSkipsSamples(t *testing.T) {
	p, calls := scripted(10, 10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(p, Options{}).Probe(ctx, "h")
	if calls.Load() != 0 {
		t.Fatalf("calls=%d, want=0", calls.Load())
	}
	if res.Tier != model.TierBad {
		t.Fatalf("tier=%q, want=bad", res.Tier)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"": MethodICMP, "ICMP": MethodICMP, " tcp ": MethodTCP} {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Fatalf("ParseMethod(%q)=%q,%v, want=%q", in, got, err, want)
		}
	}
	if _, err := ParseMethod("udp"); err == nil {
		t.Fatalf("expected error for udp")
	}
}

func TestNewPinger(t *testing.T) {
	p, err := NewPinger(PingerConfig{Method: MethodTCP, TCPPort: 8443})
	if err != nil {
		t.Fatalf("NewPinger: %v", err)
	}
	if tp, ok := p.(*TCPPinger); !ok || tp.Port != 8443 {
		t.Fatalf("pinger=%#v, want *TCPPinger{Port:8443}", p)
	}
	p, err = NewPinger(PingerConfig{Privileged: true})
	if err != nil {
		t.Fatalf("NewPinger: %v", err)
	}
	if ip, ok := p.(*ICMPPinger); !ok || !ip.Privileged {
		t.Fatalf("pinger=%#v, want privileged *ICMPPinger", p)
	}
	if _, err := NewPinger(PingerConfig{Method: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTCPPinger_LocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	p := &TCPPinger{Port: port}
	d, err := p.Ping(context.Background(), "127.0.0.1", time.Second)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if d <= 0 || d > time.Second {
		t.Fatalf("rtt=%v, want within (0,1s]", d)
	}
}

func TestTCPPinger_ClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()
	port, _ := strconv.Atoi(portStr)

	p := &TCPPinger{Port: port}
	if _, err := p.Ping(context.Background(), "127.0.0.1", time.Second); err == nil {
		t.Fatalf("expected error dialing closed port")
	}
}

func TestTCPPinger_BadPort(t *testing.T) {
	p := &TCPPinger{Port: 70000}
	if _, err := p.Ping(context.Background(), "127.0.0.1", time.Second); !errors.Is(err, errPortRange) {
		t.Fatalf("err=%v, want errPortRange", err)
	}
}

func TestAsciiHost(t *testing.T) {
	cases := map[string]string{
		"example.com":   "example.com",
		"example.com.":  "example.com",
		"[2001:db8::1]": "2001:db8::1",
		"1.2.3.4":       "1.2.3.4",
		"bücher.de":     "xn--bcher-kva.de",
	}
	for in, want := range cases {
		if got := asciiHost(in); got != want {
			t.Fatalf("asciiHost(%q)=%q, want=%q", in, got, want)
		}
	}
}

func TestResolveIP_Literal(t *testing.T) {
	ip, err := resolveIP(context.Background(), nil, "[::1]")
	if err != nil || !ip.Equal(net.IPv6loopback) {
		t.Fatalf("resolveIP=%v,%v, want ::1", ip, err)
	}
}
