package probe

import (
	"time"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

const (
	DefaultGood = 150 * time.Millisecond
	DefaultWarn = 300 * time.Millisecond
)

// Classifier maps an aggregate latency to a tier.
//
// Upper bounds are inclusive: Good itself is good, Warn itself is warn.
// MinValid is the lowest aggregate still considered good; 0 disables the
// lower bound. Exclusive switches both upper bounds to strict comparisons.
type Classifier struct {
	Good      time.Duration
	Warn      time.Duration
	MinValid  time.Duration
	Exclusive bool
}

func (c Classifier) withDefaults() Classifier {
	if c.Good <= 0 {
		c.Good = DefaultGood
	}
	if c.Warn <= 0 {
		c.Warn = DefaultWarn
	}
	return c
}

// Classify returns the tier for agg; a nil aggregate is always bad.
func (c Classifier) Classify(agg *time.Duration) model.Tier {
	if agg == nil {
		return model.TierBad
	}
	c = c.withDefaults()
	a := *agg
	if a < 0 || a < c.MinValid {
		return model.TierBad
	}
	if c.within(a, c.Good) {
		return model.TierGood
	}
	if c.within(a, c.Warn) {
		return model.TierWarn
	}
	return model.TierBad
}

func (c Classifier) within(a, bound time.Duration) bool {
	if c.Exclusive {
		return a < bound
	}
	return a <= bound
}

// Mean returns the arithmetic mean of the present samples, or nil when none
// is present.
func Mean(samples []*time.Duration) *time.Duration {
	var sum time.Duration
	n := 0
	for _, s := range samples {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return nil
	}
	m := sum / time.Duration(n)
	return &m
}
