// Package output encodes routed records and writes them out as artifacts.
package output

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

// All is the artifact name for "every tier" or "every protocol".
const All = "all"

type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingBase64 Encoding = "base64"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingBase64:
		return EncodingBase64, nil
	case EncodingRaw:
		return EncodingRaw, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (want raw|base64)", s)
	}
}

// Encode returns the padded standard base64 of lines joined by '\n'.
func Encode(lines []string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n")))
}

// Render returns the artifact body for lines in enc.
func Render(lines []string, enc Encoding) []byte {
	if enc == EncodingBase64 {
		return []byte(Encode(lines))
	}
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Artifact is one (tier, protocol) selection of routed records. Tier and
// Protocol are "all" for the combined selections.
type Artifact struct {
	Tier     string
	Protocol string
	Lines    []string
}

// Name is the artifact's file name without directory.
func (a Artifact) Name() string {
	return a.Tier + "_" + a.Protocol + ".txt"
}

// ParseSelector maps URL/file name parts back to a Result.Select query.
// "all" maps to the empty selector. Bad is not routed, so it never parses.
func ParseSelector(tier, protocol string) (model.Tier, model.Protocol, bool) {
	var t model.Tier
	if !strings.EqualFold(tier, All) {
		pt, ok := model.ParseTier(tier)
		if !ok || pt == model.TierBad {
			return "", "", false
		}
		t = pt
	}
	var p model.Protocol
	if !strings.EqualFold(protocol, All) {
		p = model.ParseProtocol(protocol)
		if p == model.ProtocolUnknown {
			return "", "", false
		}
	}
	return t, p, true
}

// Artifacts enumerates every non-empty tier/protocol selection of res,
// including the "all" rows and columns.
func Artifacts(res *pipeline.Result) []Artifact {
	tiers := append([]string{All}, lo.Map(model.RoutedTiers, func(t model.Tier, _ int) string { return string(t) })...)
	protos := append([]string{All}, lo.Map(model.Protocols, func(p model.Protocol, _ int) string { return string(p) })...)

	all := lo.FlatMap(tiers, func(tier string, _ int) []Artifact {
		return lo.Map(protos, func(proto string, _ int) Artifact {
			t, p, _ := ParseSelector(tier, proto)
			return Artifact{Tier: tier, Protocol: proto, Lines: canonicals(res.Select(t, p))}
		})
	})
	return lo.Filter(all, func(a Artifact, _ int) bool { return len(a.Lines) > 0 })
}

// SourceArtifacts is Artifacts restricted to what one source kept, including
// records another source routed first.
func SourceArtifacts(sr pipeline.SourceResult) []Artifact {
	byKey := lo.GroupBy(sr.Kept, func(rr pipeline.RoutedRecord) model.BucketKey {
		return model.BucketKey{Tier: rr.Probe.Tier, Protocol: rr.Record.Protocol}
	})
	buckets := lo.MapValues(byKey, func(rs []pipeline.RoutedRecord, _ model.BucketKey) []model.ConfigRecord {
		return lo.Map(rs, func(rr pipeline.RoutedRecord, _ int) model.ConfigRecord { return rr.Record })
	})
	return Artifacts(&pipeline.Result{Buckets: buckets})
}

func canonicals(recs []model.ConfigRecord) []string {
	return lo.Map(recs, func(r model.ConfigRecord, _ int) string { return r.Canonical })
}
