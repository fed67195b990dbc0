package normalize

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errEmptyB64 = errors.New("empty base64 input")

// DecodeB64 decodes s with padding tolerance: trailing "=" are dropped and
// re-added up to a multiple of 4, so both missing and surplus padding
// decode. The standard alphabet is tried first, then the URL-safe one.
func DecodeB64(s string) ([]byte, error) {
	return decodeB64Padded(s)
}

func decodeB64Padded(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, errEmptyB64
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func stripBOMBytes(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
