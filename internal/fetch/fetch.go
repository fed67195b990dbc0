// Package fetch retrieves subscription bodies over HTTP(S).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxBytes     = 5 * 1024 * 1024
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "subprobe-go/1"
)

const stage = "fetch_sub"

type Options struct {
	Timeout      time.Duration // default 20s
	MaxBytes     int64         // default 5 MiB
	MaxRedirects int           // default 5
	UserAgent    string
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Code returns the AppError code carried by err, or "" if err is not a
// *FetchError.
func Code(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.AppError.Code
	}
	return ""
}

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Fetcher is safe for concurrent use; it shares one http.Client across
// sources.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	maxRedirects int
	userAgent    string
}

func New(opt Options) *Fetcher {
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	if opt.MaxRedirects <= 0 {
		opt.MaxRedirects = DefaultMaxRedirects
	}
	if opt.UserAgent == "" {
		opt.UserAgent = DefaultUserAgent
	}
	if opt.Transport == nil {
		opt.Transport = http.DefaultTransport
	}

	maxRedirects := opt.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout:   opt.Timeout,
			Transport: opt.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// 1st redirect => len(via)==1.
				if len(via) > maxRedirects {
					return errTooManyRedirects
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return errRedirectBadScheme
				}
				return nil
			},
		},
		maxBytes:     opt.MaxBytes,
		maxRedirects: opt.MaxRedirects,
		userAgent:    opt.UserAgent,
	}
}

var defaultFetcher = New(Options{})

// Fetch fetches rawURL with default options.
func Fetch(ctx context.Context, rawURL string) (string, error) {
	return defaultFetcher.Fetch(ctx, rawURL)
}

// Fetch returns the body of rawURL. Success means a 2xx status and a
// non-empty UTF-8 body no larger than MaxBytes; anything else is a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "only http/https URLs are allowed", rawURL, errors.Join(errInvalidURLOrScheme, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "request URL is invalid", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if errors.Is(err, errTooManyRedirects) {
			return "", newError(http.StatusBadGateway, "SOURCE_UNREACHABLE", fmt.Sprintf("too many redirects (>%d)", f.maxRedirects), rawURL, err)
		}
		if errors.Is(err, errRedirectBadScheme) {
			return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "redirect target must be http/https", rawURL, err)
		}
		if isTimeout(err) {
			return "", newError(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "timed out fetching source", rawURL, err)
		}
		return "", newError(http.StatusBadGateway, "SOURCE_UNREACHABLE", "source is unreachable", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(http.StatusBadGateway, "FETCH_BAD_STATUS", fmt.Sprintf("upstream returned status %d", resp.StatusCode), rawURL, nil)
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", newError(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "timed out reading source", rawURL, err)
		}
		return "", newError(http.StatusBadGateway, "SOURCE_UNREACHABLE", "failed to read upstream response", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", newError(http.StatusUnprocessableEntity, "TOO_LARGE", fmt.Sprintf("source is too large (>%d bytes)", f.maxBytes), rawURL, nil)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", newError(http.StatusUnprocessableEntity, "EMPTY_BODY", "source returned an empty body", rawURL, nil)
	}
	if !utf8.Valid(body) {
		return "", newError(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "source is not valid UTF-8 text", rawURL, nil)
	}

	return string(body), nil
}

func isTimeout(err error) bool {
	// Go may wrap errors (e.g. *url.Error).
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func newError(status int, code, message, rawURL string, cause error) *FetchError {
	return &FetchError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
			URL:     rawURL,
		},
		Cause: cause,
	}
}
