// Package hostx derives the probe target of a proxy record.
//
// Hosts are opaque tokens: nothing here resolves or validates them. IPv6
// literals come back without their brackets, internationalized names come
// back as written.
package hostx

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/normalize"
)

// Both patterns stop at the first ':', '/', '?', '#' or whitespace, except
// inside an IPv6 bracket literal which is taken whole.
var (
	userinfoRe  = regexp.MustCompile(`@(\[[^\]\s/?#]*\]|[^:/?#\s\[]+)`)
	authorityRe = regexp.MustCompile(`://(\[[^\]\s/?#]*\]|[^:/?#\s\[]+)`)
)

// Extract returns the host of rec. The second result is false when no
// pattern matched; such records are not probed.
func Extract(rec model.ConfigRecord) (model.HostTarget, bool) {
	if view, ok := decodedView(rec); ok {
		if h, ok := Match(view); ok {
			return model.HostTarget{Host: h}, true
		}
	}
	if h, ok := Match(rec.Canonical); ok {
		return model.HostTarget{Host: h}, true
	}
	return model.HostTarget{}, false
}

// Match applies the userinfo pattern, then the scheme-authority pattern, to
// s and returns the first captured host.
func Match(s string) (string, bool) {
	for _, re := range []*regexp.Regexp{userinfoRe, authorityRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if h := unbracket(m[1]); h != "" {
			return h, true
		}
	}
	return "", false
}

func unbracket(h string) string {
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	return strings.TrimSpace(h)
}

// decodedView returns the text the patterns should see for records whose
// whole payload is encoded. vmess yields "@<add>" so the userinfo pattern
// picks the server field; legacy ss yields the decoded
// "method:password@host:port" from its last '@'.
func decodedView(rec model.ConfigRecord) (string, bool) {
	switch rec.Protocol {
	case model.ProtocolVmess:
		payload, ok := cutScheme(rec.Canonical)
		if !ok {
			return "", false
		}
		raw, err := normalize.DecodeB64(payload)
		if err != nil {
			return "", false
		}
		var doc struct {
			Add any `json:"add"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", false
		}
		add, _ := doc.Add.(string)
		add = strings.TrimSpace(add)
		if add == "" {
			return "", false
		}
		if strings.Contains(add, ":") && !strings.HasPrefix(add, "[") {
			add = "[" + add + "]"
		}
		return "@" + add, true
	case model.ProtocolShadowsocks:
		payload, ok := cutScheme(rec.Canonical)
		if !ok || strings.Contains(payload, "@") {
			return "", false
		}
		payload, _, _ = strings.Cut(payload, "#")
		payload, _, _ = strings.Cut(payload, "?")
		raw, err := normalize.DecodeB64(strings.TrimSuffix(payload, "/"))
		if err != nil {
			return "", false
		}
		decoded := string(raw)
		at := strings.LastIndex(decoded, "@")
		if at < 0 {
			return "", false
		}
		return decoded[at:], true
	default:
		return "", false
	}
}

func cutScheme(s string) (string, bool) {
	_, rest, ok := strings.Cut(s, "://")
	return rest, ok
}
