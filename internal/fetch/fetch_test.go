package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func mustFetchError(t *testing.T, err error) *FetchError {
	t.Helper()
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.AppError.Stage != "fetch_sub" {
		t.Fatalf("stage=%q, want=%q", fe.AppError.Stage, "fetch_sub")
	}
	return fe
}

func TestFetch_OK(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("vless://a@b:1\n"))
	}))
	defer ts.Close()

	body, err := New(Options{UserAgent: "probe-test"}).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "vless://a@b:1\n" {
		t.Fatalf("body=%q", body)
	}
	if ua != "probe-test" {
		t.Fatalf("user-agent=%q, want=%q", ua, "probe-test")
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/x", "not a url", "http://"} {
		_, err := Fetch(context.Background(), u)
		fe := mustFetchError(t, err)
		if fe.Status != http.StatusBadRequest {
			t.Fatalf("%q: status=%d, want=%d", u, fe.Status, http.StatusBadRequest)
		}
		if fe.AppError.Code != "INVALID_ARGUMENT" {
			t.Fatalf("%q: code=%q, want=%q", u, fe.AppError.Code, "INVALID_ARGUMENT")
		}
	}
}

func TestFetch_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.AppError.Code != "FETCH_BAD_STATUS" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "FETCH_BAD_STATUS")
	}
	if Code(err) != "FETCH_BAD_STATUS" {
		t.Fatalf("Code=%q", Code(err))
	}
	if !strings.Contains(fe.AppError.Message, "500") {
		t.Fatalf("message=%q, want status in message", fe.AppError.Message)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(" \r\n\t"))
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.AppError.Code != "EMPTY_BODY" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "EMPTY_BODY")
	}
}

func TestFetch_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 32)))
	}))
	defer ts.Close()

	_, err := New(Options{MaxBytes: 10}).Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusUnprocessableEntity)
	}
	if fe.AppError.Code != "TOO_LARGE" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "TOO_LARGE")
	}
}

func TestFetch_InvalidUTF8(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 0xff is always invalid in UTF-8.
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.AppError.Code != "FETCH_INVALID_UTF8" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "FETCH_INVALID_UTF8")
	}
}

func TestFetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	_, err := New(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.Status != http.StatusGatewayTimeout {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusGatewayTimeout)
	}
	if fe.AppError.Code != "FETCH_TIMEOUT" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "FETCH_TIMEOUT")
	}
}

func TestFetch_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := ts.URL
	ts.Close()

	_, err := Fetch(context.Background(), u)
	fe := mustFetchError(t, err)
	if fe.AppError.Code != "SOURCE_UNREACHABLE" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "SOURCE_UNREACHABLE")
	}
}

func TestFetch_TooManyRedirects(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusFound)
	}))
	defer ts.Close()

	_, err := New(Options{MaxRedirects: 2}).Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.Status != http.StatusBadGateway {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusBadGateway)
	}
	if fe.AppError.Code != "SOURCE_UNREACHABLE" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "SOURCE_UNREACHABLE")
	}
}

func TestFetch_RedirectToNonHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "file:///etc/passwd", http.StatusFound)
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	fe := mustFetchError(t, err)
	if fe.Status != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusBadRequest)
	}
	if fe.AppError.Code != "INVALID_ARGUMENT" {
		t.Fatalf("code=%q, want=%q", fe.AppError.Code, "INVALID_ARGUMENT")
	}
}

func TestFetch_CanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, ts.URL)
	if err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want wrapping context.Canceled", err)
	}
}
