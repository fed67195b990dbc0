package model

import (
	"strings"
	"time"
)

type Tier string

const (
	TierGood Tier = "good"
	TierWarn Tier = "warn"
	TierBad  Tier = "bad"
)

// RoutedTiers are the tiers that make it into buckets. Bad records are
// classified but never routed.
var RoutedTiers = []Tier{TierGood, TierWarn}

func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierGood:
		return TierGood, true
	case TierWarn:
		return TierWarn, true
	case TierBad:
		return TierBad, true
	default:
		return "", false
	}
}

// ProbeResult is the outcome of probing one host during one run.
//
// Samples has one entry per attempted probe; a nil entry is a probe that
// failed or timed out. Aggregate is nil when no sample succeeded.
type ProbeResult struct {
	Host      string
	Samples   []*time.Duration
	Aggregate *time.Duration
	Tier      Tier
}

// Succeeded returns the number of non-absent samples.
func (r ProbeResult) Succeeded() int {
	n := 0
	for _, s := range r.Samples {
		if s != nil {
			n++
		}
	}
	return n
}

// BucketKey addresses one routed bucket.
type BucketKey struct {
	Tier     Tier
	Protocol Protocol
}

func (k BucketKey) String() string {
	return string(k.Tier) + "/" + string(k.Protocol)
}
