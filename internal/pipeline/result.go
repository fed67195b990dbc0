package pipeline

import (
	"time"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

type SourceStatus string

const (
	StatusProcessed SourceStatus = "processed"
	StatusSkipped   SourceStatus = "skipped"
)

// Skip reasons that do not come from a typed fetch or parse error.
const (
	ReasonNoValidRecords = "NO_VALID_RECORDS"
	ReasonCanceled       = "CANCELED"
)

// RoutedRecord is a record that made it into a bucket, with the probe
// result that placed it there.
type RoutedRecord struct {
	Record model.ConfigRecord
	Probe  model.ProbeResult
}

// SourceResult describes what happened to one subscription source.
type SourceResult struct {
	Index  int // 1-based position in the input list
	URL    string
	Status SourceStatus
	// Reason is the error code that stopped a skipped source.
	Reason string
	Err    error

	Lines        int
	Rejected     map[string]int // by normalize reason
	Duplicates   int
	Unresolvable int
	Probed       int
	Good         int
	Warn         int
	Bad          int
	Truncated    int

	// Kept is what the source itself contributes: good records, then warn
	// records, capped at MaxPerSource.
	Kept     []RoutedRecord
	// Routed is the part of Kept that entered the buckets. Records already
	// routed by another source are not repeated here.
	Routed   []RoutedRecord
	Duration time.Duration
}

// Malformed is the total number of lines the normalizer rejected.
func (s SourceResult) Malformed() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

type Summary struct {
	Total        int `json:"total"`
	Processed    int `json:"processed"`
	Skipped      int `json:"skipped"`
	Lines        int `json:"lines"`
	Malformed    int `json:"malformed"`
	Duplicates   int `json:"duplicates"`
	Unresolvable int `json:"unresolvable"`
	Probed       int `json:"probed"`
	Good         int `json:"good"`
	Warn         int `json:"warn"`
	Bad          int `json:"bad"`
	Truncated    int `json:"truncated"`
	Routed       int `json:"routed"`
}

// Result is everything a run produced. It is not modified after Run returns.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Buckets   map[model.BucketKey][]model.ConfigRecord
	Sources   []SourceResult // input order
	Summary   Summary
}

// Select returns the routed records for tier and protocol. An empty tier
// selects every routed tier and an empty protocol every protocol. Records
// come out tier-major, then in protocol table order, then in bucket order.
func (r *Result) Select(tier model.Tier, proto model.Protocol) []model.ConfigRecord {
	if r == nil {
		return nil
	}
	tiers := model.RoutedTiers
	if tier != "" {
		tiers = []model.Tier{tier}
	}
	protos := model.Protocols
	if proto != "" {
		protos = []model.Protocol{proto}
	}
	var out []model.ConfigRecord
	for _, t := range tiers {
		for _, p := range protos {
			out = append(out, r.Buckets[model.BucketKey{Tier: t, Protocol: p}]...)
		}
	}
	return out
}
