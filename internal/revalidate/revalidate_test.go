package revalidate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewHTTPRevalidatorRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPRevalidator(Options{}); err == nil {
		t.Fatal("expected error when endpoint is empty")
	}

	if _, err := NewHTTPRevalidator(Options{Endpoint: "ftp://frontend.internal/revalidate"}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestRevalidatePostsPathsAndSecret(t *testing.T) {
	t.Parallel()

	var calls int64
	var capturedSecret string
	var capturedContentType string
	var capturedBody revalidateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		capturedSecret = r.Header.Get("X-Revalidate-Secret")
		capturedContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	revalidator, err := NewHTTPRevalidator(Options{
		Endpoint: server.URL,
		Secret:   "shared-secret",
		Logger:   silentLogger(),
	})
	if err != nil {
		t.Fatalf("NewHTTPRevalidator returned error: %v", err)
	}

	if !revalidator.Enabled() {
		t.Fatal("expected HTTP revalidator to report enabled")
	}

	if err := revalidator.Revalidate(context.Background(), []string{"/summer-sale", "/about-us"}); err != nil {
		t.Fatalf("Revalidate returned error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if capturedSecret != "shared-secret" {
		t.Fatalf("expected secret header, got %q", capturedSecret)
	}
	if capturedContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", capturedContentType)
	}

	expected := []string{"/summer-sale", "/about-us"}
	if len(capturedBody.Paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d", len(expected), len(capturedBody.Paths))
	}
	for idx, path := range expected {
		if capturedBody.Paths[idx] != path {
			t.Fatalf("expected path %q at index %d, got %q", path, idx, capturedBody.Paths[idx])
		}
	}
}

func TestRevalidateReturnsErrorOnRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad secret", http.StatusUnauthorized)
	}))
	defer server.Close()

	revalidator, err := NewHTTPRevalidator(Options{Endpoint: server.URL, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewHTTPRevalidator returned error: %v", err)
	}

	if err := revalidator.Revalidate(context.Background(), []string{"/stale"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestRevalidateSkipsEmptyPathList(t *testing.T) {
	t.Parallel()

	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer server.Close()

	revalidator, err := NewHTTPRevalidator(Options{Endpoint: server.URL, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewHTTPRevalidator returned error: %v", err)
	}

	if err := revalidator.Revalidate(context.Background(), nil); err != nil {
		t.Fatalf("Revalidate returned error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls for empty path list, got %d", calls)
	}
}

func TestNoopRevalidator(t *testing.T) {
	t.Parallel()

	var revalidator Revalidator = NoopRevalidator{}

	if revalidator.Enabled() {
		t.Fatal("expected noop revalidator to report disabled")
	}
	if err := revalidator.Revalidate(context.Background(), []string{"/anything"}); err != nil {
		t.Fatalf("noop Revalidate returned error: %v", err)
	}
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
