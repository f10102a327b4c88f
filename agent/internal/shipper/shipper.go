package shipper

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"github.com/mongorelic/mongorelic/agent/internal/config"
)

// maxLoggedBody caps how much of a response body is kept for logs and errors.
const maxLoggedBody = 512

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code      int
	Body      string
	RequestID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shipper: endpoint returned %d (request %s): %s", e.Code, e.RequestID, e.Body)
}

// Permanent reports whether resending the same envelope cannot succeed:
// 4xx means the request itself (license key, payload) was rejected.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent reports whether err is a *StatusError with a 4xx code.
// Transport failures and 5xx responses are transient.
func IsPermanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}

// HTTPShipper POSTs envelopes to the plugin API. One request per call, no
// retries; the connection is closed after every request.
//
// Ship and SetTarget are safe for concurrent use.
type HTTPShipper struct {
	client *http.Client
	logger *zap.SugaredLogger

	mu  sync.RWMutex
	url string
	key string
}

// New builds an HTTPShipper for cfg. It fails only if the TLS settings
// cannot be loaded.
func New(cfg config.NewRelicConfig, logger *zap.SugaredLogger) (*HTTPShipper, error) {
	s := &HTTPShipper{
		logger: logger,
		url:    cfg.APIURL,
		key:    cfg.Key(),
	}
	client, err := s.buildHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("shipper: build http client: %w", err)
	}
	s.client = client
	return s, nil
}

// SetTarget swaps the endpoint and license key used by subsequent Ship calls.
func (s *HTTPShipper) SetTarget(url, key string) {
	s.mu.Lock()
	changed := s.url != url || s.key != key
	s.url, s.key = url, key
	s.mu.Unlock()

	if changed {
		s.logger.Infow("shipper: target updated", "url", url)
	}
}

// Target returns the current endpoint URL.
func (s *HTTPShipper) Target() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

func (s *HTTPShipper) licenseKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Ship sends body as one POST. It returns nil only for a 2xx response.
func (s *HTTPShipper) Ship(ctx context.Context, body []byte) error {
	url := s.Target()
	reqID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shipper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	req.Close = true

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("shipper: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debugw("shipper: response",
		"status", resp.StatusCode, "request_id", reqID, "body", string(snippet))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(snippet), RequestID: reqID}
	}
	return nil
}

// licenseKeyRoundTripper injects the current license key into every request.
type licenseKeyRoundTripper struct {
	base http.RoundTripper
	key  func() string
}

func (t *licenseKeyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if key := t.key(); key != "" {
		req = req.Clone(req.Context())
		req.Header.Set("X-License-Key", key)
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs a non-pooled client with the configured TLS
// settings and timeout.
func (s *HTTPShipper) buildHTTPClient(cfg config.NewRelicConfig) (*http.Client, error) {
	tlsCfg, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	transport := cleanhttp.DefaultTransport()
	transport.TLSClientConfig = tlsCfg

	return &http.Client{
		Transport: &licenseKeyRoundTripper{base: transport, key: s.licenseKey},
		Timeout:   cfg.Timeout,
	}, nil
}

// buildTLSConfig loads the optional CA bundle.
func buildTLSConfig(c config.TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if c.CAFile == "" {
		return tlsCfg, nil
	}

	caPEM, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no valid certs in ca file %q", c.CAFile)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}
