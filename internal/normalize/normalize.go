// Package normalize turns raw subscription lines into canonical
// model.ConfigRecord values.
package normalize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

// Strategy selects how much repair Normalize attempts.
type Strategy string

const (
	// StrategyProtocol runs the protocol table and repairs encoded payloads.
	StrategyProtocol Strategy = "protocol"
	// StrategyPercent percent-decodes the whole line and keeps it otherwise
	// untouched. Simpler deployments use it when no repair is needed.
	StrategyPercent Strategy = "percent"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyProtocol:
		return StrategyProtocol, nil
	case StrategyPercent:
		return StrategyPercent, nil
	default:
		return "", fmt.Errorf("unknown normalize strategy %q (want protocol|percent)", s)
	}
}

const DefaultMinLength = 5

// DefaultDenylist holds the markers subscription authors use to flag
// administratively disabled entries.
var DefaultDenylist = []string{"pin=0", "pin=red", "pin=قرمز"}

type Options struct {
	Strategy  Strategy
	MinLength int      // default 5 (runes, after trimming)
	Denylist  []string // default DefaultDenylist; matched case-insensitively
}

type Reason string

const (
	ReasonTooShort        Reason = "too_short"
	ReasonDenylisted      Reason = "denylisted"
	ReasonUnknownProtocol Reason = "unknown_protocol"
	ReasonMalformed       Reason = "malformed"
)

// RejectError reports why a line produced no record.
type RejectError struct {
	Reason   Reason
	AppError model.AppError
	Cause    error
}

func (e *RejectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RejectError) Unwrap() error { return e.Cause }

// ReasonOf extracts the reject reason from err, or "" if err is not a
// *RejectError.
func ReasonOf(err error) Reason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

type Normalizer struct {
	strategy  Strategy
	minLength int
	denylist  []string
}

func New(opt Options) *Normalizer {
	if opt.Strategy == "" {
		opt.Strategy = StrategyProtocol
	}
	if opt.MinLength <= 0 {
		opt.MinLength = DefaultMinLength
	}
	if opt.Denylist == nil {
		opt.Denylist = DefaultDenylist
	}
	deny := make([]string, 0, len(opt.Denylist))
	for _, d := range opt.Denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			deny = append(deny, d)
		}
	}
	return &Normalizer{strategy: opt.Strategy, minLength: opt.MinLength, denylist: deny}
}

var defaultNormalizer = New(Options{})

// Normalize runs the default protocol strategy on line.
func Normalize(line string) (model.ConfigRecord, error) {
	return defaultNormalizer.Normalize(line)
}

// Normalize classifies line and returns its canonical record. A non-nil
// error is always a *RejectError and means the line is dropped.
func (n *Normalizer) Normalize(line string) (model.ConfigRecord, error) {
	s := strings.TrimSpace(stripUTF8BOM(line))
	if s == "" || utf8.RuneCountInString(s) < n.minLength {
		return model.ConfigRecord{}, reject(ReasonTooShort, "RECORD_TOO_SHORT", "line is empty or too short", s, nil)
	}
	lower := strings.ToLower(s)
	for _, marker := range n.denylist {
		if strings.Contains(lower, marker) {
			return model.ConfigRecord{}, reject(ReasonDenylisted, "RECORD_DENYLISTED", "line carries a disabled marker", s, nil)
		}
	}

	if n.strategy == StrategyPercent {
		return normalizePercent(s)
	}

	proto, plen := matchPrefix(s)
	if proto == model.ProtocolUnknown {
		return model.ConfigRecord{}, reject(ReasonUnknownProtocol, "RECORD_UNKNOWN_PROTOCOL", "no known scheme prefix", s, nil)
	}
	payload := s[plen:]

	var canonical string
	switch proto {
	case model.ProtocolVmess:
		p, err := repairVmess(payload)
		if err != nil {
			return model.ConfigRecord{}, reject(ReasonMalformed, "RECORD_MALFORMED", "vmess payload is not base64 JSON", s, err)
		}
		canonical = "vmess://" + p
	case model.ProtocolShadowsocks:
		p, err := repairShadowsocks(payload)
		if err != nil {
			return model.ConfigRecord{}, reject(ReasonMalformed, "RECORD_MALFORMED", "shadowsocks payload is empty", s, err)
		}
		canonical = "ss://" + p
	default:
		canonical = s
	}

	return model.ConfigRecord{Protocol: proto, Canonical: canonical, Original: s}, nil
}

func normalizePercent(s string) (model.ConfigRecord, error) {
	decoded := strings.TrimSpace(unquote(s))
	proto := DetectProtocol(decoded)
	if proto == model.ProtocolUnknown {
		return model.ConfigRecord{}, reject(ReasonUnknownProtocol, "RECORD_UNKNOWN_PROTOCOL", "no known scheme prefix", s, nil)
	}
	return model.ConfigRecord{Protocol: proto, Canonical: decoded, Original: s}, nil
}

// unquote decodes every valid %XX escape in s and copies anything else
// through unchanged, so one stray '%' does not block the rest. Decoded bytes
// that are not UTF-8 become U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

var errNotJSONObject = errors.New("decoded payload is not a JSON object")

// repairVmess decodes the payload, compacts the JSON document (key order is
// kept) and re-encodes it with padded standard base64.
func repairVmess(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", errors.New("empty payload")
	}
	raw, err := decodeB64Padded(payload)
	if err != nil {
		return "", err
	}
	raw = bytes.TrimSpace(stripBOMBytes(raw))
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return "", errNotJSONObject
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// repairShadowsocks keeps payloads that already decode (or carry a plain
// SIP002 host part) and base64-encodes everything else. The decode check
// only proves the bytes decode; it says nothing about the configuration.
func repairShadowsocks(payload string) (string, error) {
	body, _, _ := strings.Cut(payload, "#")
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("empty payload")
	}
	if strings.Contains(body, "@") {
		return body, nil
	}
	if _, err := decodeB64Padded(body); err == nil {
		return body, nil
	}
	return base64.StdEncoding.EncodeToString([]byte(body)), nil
}

func reject(reason Reason, code, message, line string, cause error) error {
	return &RejectError{
		Reason: reason,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "normalize",
			Snippet: truncateSnippet(line, 200),
		},
		Cause: cause,
	}
}
