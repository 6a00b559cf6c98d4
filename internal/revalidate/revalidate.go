// Package revalidate notifies the rendering frontend that cached paths have
// gone stale. Calls are best-effort: the page service logs failures and moves
// on, so a slow or absent frontend never blocks a save.
package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 5 * time.Second
	secretHeader   = "X-Revalidate-Secret"
)

// Revalidator asks the frontend to refresh its cache for the given paths.
type Revalidator interface {
	Revalidate(ctx context.Context, paths []string) error
	Enabled() bool
}

// Options controls how the HTTP revalidator is initialised.
type Options struct {
	Endpoint   string
	Secret     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// HTTPRevalidator POSTs stale paths to the frontend's revalidation endpoint.
type HTTPRevalidator struct {
	endpoint string
	secret   string
	client   *http.Client
	logger   *logrus.Logger
}

var _ Revalidator = (*HTTPRevalidator)(nil)

// NewHTTPRevalidator constructs a revalidator for the configured endpoint.
func NewHTTPRevalidator(opts Options) (*HTTPRevalidator, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, eris.New("revalidate endpoint is required")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "parsing revalidate endpoint")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, eris.Errorf("revalidate endpoint has unsupported scheme: %s", parsed.Scheme)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPRevalidator{
		endpoint: endpoint,
		secret:   strings.TrimSpace(opts.Secret),
		client:   client,
		logger:   opts.Logger,
	}, nil
}

// Enabled reports that this revalidator performs real calls.
func (r *HTTPRevalidator) Enabled() bool {
	return true
}

type revalidateRequest struct {
	Paths []string `json:"paths"`
}

// Revalidate POSTs the stale paths to the frontend. Any non-2xx response is
// an error.
func (r *HTTPRevalidator) Revalidate(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	body, err := json.Marshal(revalidateRequest{Paths: paths})
	if err != nil {
		return eris.Wrap(err, "encoding revalidate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "building revalidate request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set(secretHeader, r.secret)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logError(logrus.Fields{"paths": strings.Join(paths, ",")}, err, "calling revalidate endpoint")
		return eris.Wrap(err, "calling revalidate endpoint")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := eris.Errorf("revalidate endpoint returned status %d", resp.StatusCode)
		r.logError(logrus.Fields{"status": resp.StatusCode}, err, "revalidate request rejected")
		return err
	}

	return nil
}

func (r *HTTPRevalidator) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

// NoopRevalidator stands in when no frontend endpoint is configured.
type NoopRevalidator struct{}

var _ Revalidator = NoopRevalidator{}

// Revalidate does nothing.
func (NoopRevalidator) Revalidate(context.Context, []string) error {
	return nil
}

// Enabled reports that revalidation is turned off.
func (NoopRevalidator) Enabled() bool {
	return false
}
