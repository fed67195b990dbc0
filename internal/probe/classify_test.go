package probe

import (
	"testing"
	"time"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

func ms(n int) *time.Duration {
	d := time.Duration(n) * time.Millisecond
	return &d
}

func TestClassify_DefaultBoundaries(t *testing.T) {
	var c Classifier
	cases := []struct {
		agg  *time.Duration
		want model.Tier
	}{
		{nil, model.TierBad},
		{ms(0), model.TierGood},
		{ms(1), model.TierGood},
		{ms(150), model.TierGood},
		{ms(151), model.TierWarn},
		{ms(300), model.TierWarn},
		{ms(301), model.TierBad},
		{ms(5000), model.TierBad},
		{ms(-1), model.TierBad},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.agg); got != tc.want {
			t.Fatalf("Classify(%v)=%q, want=%q", tc.agg, got, tc.want)
		}
	}
}

func TestClassify_Exclusive(t *testing.T) {
	c := Classifier{Exclusive: true}
	if got := c.Classify(ms(150)); got != model.TierWarn {
		t.Fatalf("150ms=%q, want=warn", got)
	}
	if got := c.Classify(ms(300)); got != model.TierBad {
		t.Fatalf("300ms=%q, want=bad", got)
	}
	if got := c.Classify(ms(149)); got != model.TierGood {
		t.Fatalf("149ms=%q, want=good", got)
	}
}

func TestClassify_MinValid(t *testing.T) {
	c := Classifier{MinValid: time.Millisecond}
	if got := c.Classify(ms(0)); got != model.TierBad {
		t.Fatalf("0ms=%q, want=bad", got)
	}
	if got := c.Classify(ms(1)); got != model.TierGood {
		t.Fatalf("1ms=%q, want=good", got)
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	c := Classifier{Good: 50 * time.Millisecond, Warn: 80 * time.Millisecond}
	if got := c.Classify(ms(60)); got != model.TierWarn {
		t.Fatalf("60ms=%q, want=warn", got)
	}
	if got := c.Classify(ms(81)); got != model.TierBad {
		t.Fatalf("81ms=%q, want=bad", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != nil {
		t.Fatalf("Mean(nil)=%v, want=nil", *got)
	}
	if got := Mean([]*time.Duration{nil, nil}); got != nil {
		t.Fatalf("Mean(all nil)=%v, want=nil", *got)
	}
	got := Mean([]*time.Duration{ms(200), nil, ms(250)})
	if got == nil || *got != 225*time.Millisecond {
		t.Fatalf("Mean=%v, want=225ms", got)
	}
}
