// Package dedup removes repeated canonical records while keeping the first
// occurrence of each.
package dedup

import (
	"github.com/zeebo/xxh3"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

// Set is a seen-set over string keys. Keys are folded to 128-bit xxh3
// digests so large subscriptions don't keep a second copy of every line.
// The zero value is not usable; call NewSet.
type Set struct {
	seen map[xxh3.Uint128]struct{}
}

func NewSet(sizeHint int) *Set {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Set{seen: make(map[xxh3.Uint128]struct{}, sizeHint)}
}

// Add records key and reports whether it was new.
func (s *Set) Add(key string) bool {
	h := xxh3.HashString128(key)
	if _, ok := s.seen[h]; ok {
		return false
	}
	s.seen[h] = struct{}{}
	return true
}

func (s *Set) Len() int { return len(s.seen) }

// Dedupe returns records with duplicate Canonical forms removed, in
// first-occurrence order. The input slice is not modified.
func Dedupe(records []model.ConfigRecord) []model.ConfigRecord {
	set := NewSet(len(records))
	out := make([]model.ConfigRecord, 0, len(records))
	for _, r := range records {
		if set.Add(r.Canonical) {
			out = append(out, r)
		}
	}
	return out
}

// Strings is Dedupe for plain strings (source URLs, input blocks).
func Strings(in []string) []string {
	set := NewSet(len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if set.Add(s) {
			out = append(out, s)
		}
	}
	return out
}
