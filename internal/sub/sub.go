// Package sub expands a fetched subscription body into raw configuration
// lines.
package sub

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Body is an expanded subscription.
type Body struct {
	Lines []string
	// Encoded reports whether the body was a base64 list.
	Encoded bool
}

// Expand turns content into its non-empty, non-comment lines.
//
// Detection: a body that contains "://" is a plain list. Anything else is
// tried as a base64 list (whitespace removed, std or URL alphabet, padding
// optional). When that decode fails or is not UTF-8 the body is used as-is;
// the normalizer drops whatever is not a configuration line.
func Expand(sourceURL, content string) (Body, error) {
	s := strings.TrimSpace(stripUTF8BOM(content))
	if s == "" {
		return Body{}, newParseError(sourceURL, "", "SUB_EMPTY", "subscription body is empty", nil)
	}

	var body Body
	if !strings.Contains(s, "://") {
		if decoded, err := decodeSubscriptionBase64(s); err == nil {
			decoded = strings.TrimSpace(stripUTF8BOM(decoded))
			if decoded != "" {
				s = decoded
				body.Encoded = true
			}
		}
	}

	body.Lines = splitLines(s)
	if len(body.Lines) == 0 {
		return Body{}, newParseError(sourceURL, truncateSnippet(s, 200), "SUB_EMPTY", "subscription has no lines", nil)
	}
	return body, nil
}

// Lines is Expand without the encoding flag.
func Lines(sourceURL, content string) ([]string, error) {
	b, err := Expand(sourceURL, content)
	if err != nil {
		return nil, err
	}
	return b.Lines, nil
}

func splitLines(raw string) []string {
	// Split on \n and trim, so CRLF bodies work too.
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, line := range parts {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func decodeSubscriptionBase64(s string) (string, error) {
	b, err := decodeB64ToBytes(removeSpaceTabCRLF(s))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded subscription is not valid utf-8")
	}
	return string(b), nil
}

func decodeB64ToBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty base64 input")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
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

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newParseError(sourceURL, snippet, code, message string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_sub",
			URL:     sourceURL,
			Snippet: snippet,
		},
		Cause: cause,
	}
}
