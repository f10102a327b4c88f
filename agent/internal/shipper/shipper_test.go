package shipper

import (
	"bytes"
	"context"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mongorelic/mongorelic/agent/internal/config"
)

const envelope = `{"agent":{"host":"db-1","pid":1,"version":"0.1.0"},"components":[]}`

// recorder captures every request an httptest server receives.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	status   int
	reply    string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, body)
	status, reply := r.status, r.reply
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply))
}

func (r *recorder) last(t *testing.T) (*http.Request, []byte) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.requests, "no request received")
	n := len(r.requests) - 1
	return r.requests[n], r.bodies[n]
}

func newShipper(t *testing.T, url, key string) *HTTPShipper {
	t.Helper()
	s, err := New(config.NewRelicConfig{
		APIURL:     url,
		LicenseKey: key,
		Timeout:    2 * time.Second,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return s
}

// --- HTTPShipper ---

func TestShip_SendsEnvelopeWithHeaders(t *testing.T) {
	rec := &recorder{reply: `{"status":"ok"}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newShipper(t, srv.URL+"/platform/v1/metrics", "license-123")
	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))

	req, body := rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/platform/v1/metrics", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "license-123", req.Header.Get("X-License-Key"))
	assert.True(t, req.Close, "connection must not be reused")
	assert.Equal(t, envelope, string(body))

	_, err := uuid.Parse(req.Header.Get("X-Request-ID"))
	assert.NoError(t, err, "X-Request-ID must be a uuid")
}

func TestShip_FreshRequestIDPerCall(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newShipper(t, srv.URL, "k")
	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))
	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.requests, 2)
	assert.NotEqual(t, rec.requests[0].Header.Get("X-Request-ID"), rec.requests[1].Header.Get("X-Request-ID"))
}

func TestShip_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		permanent bool
	}{
		{"ok", http.StatusOK, false, false},
		{"accepted", http.StatusAccepted, false, false},
		{"forbidden", http.StatusForbidden, true, true},
		{"bad request", http.StatusBadRequest, true, true},
		{"server error", http.StatusInternalServerError, true, false},
		{"unavailable", http.StatusServiceUnavailable, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{status: tc.status, reply: `{"error":"nope"}`}
			srv := httptest.NewServer(rec)
			defer srv.Close()

			err := newShipper(t, srv.URL, "k").Ship(context.Background(), []byte(envelope))
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.status, se.Code)
			assert.Equal(t, `{"error":"nope"}`, se.Body)
			assert.Equal(t, tc.permanent, IsPermanent(err))

			// Exactly one attempt per call.
			rec.mu.Lock()
			assert.Len(t, rec.requests, 1)
			rec.mu.Unlock()
		})
	}
}

func TestShip_TruncatesLongResponseBody(t *testing.T) {
	rec := &recorder{status: http.StatusBadGateway, reply: string(bytes.Repeat([]byte("x"), 4096))}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	err := newShipper(t, srv.URL, "k").Ship(context.Background(), []byte(envelope))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Body, maxLoggedBody)
}

func TestShip_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newShipper(t, url, "k").Ship(context.Background(), []byte(envelope))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestShip_CancelledContext(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newShipper(t, srv.URL, "k").Ship(ctx, []byte(envelope))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShip_NoKeyNoHeader(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	require.NoError(t, newShipper(t, srv.URL, "").Ship(context.Background(), []byte(envelope)))
	req, _ := rec.last(t)
	_, present := req.Header["X-License-Key"]
	assert.False(t, present)
}

func TestSetTarget_SwitchesEndpointAndKey(t *testing.T) {
	oldRec, newRec := &recorder{}, &recorder{}
	oldSrv, newSrv := httptest.NewServer(oldRec), httptest.NewServer(newRec)
	defer oldSrv.Close()
	defer newSrv.Close()

	s := newShipper(t, oldSrv.URL, "old-key")
	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))

	s.SetTarget(newSrv.URL, "new-key")
	assert.Equal(t, newSrv.URL, s.Target())
	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))

	req, _ := newRec.last(t)
	assert.Equal(t, "new-key", req.Header.Get("X-License-Key"))
	oldRec.mu.Lock()
	assert.Len(t, oldRec.requests, 1)
	oldRec.mu.Unlock()
}

func TestShip_TLSWithCAFile(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewTLSServer(rec)
	defer srv.Close()

	caFile := writeServerCA(t, srv)
	s, err := New(config.NewRelicConfig{
		APIURL:     srv.URL,
		LicenseKey: "k",
		Timeout:    2 * time.Second,
		TLS:        config.TLSConfig{CAFile: caFile},
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	require.NoError(t, s.Ship(context.Background(), []byte(envelope)))
}

func TestShip_TLSUnknownAuthorityFails(t *testing.T) {
	srv := httptest.NewTLSServer(&recorder{})
	defer srv.Close()

	err := newShipper(t, srv.URL, "k").Ship(context.Background(), []byte(envelope))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestNew_BadCAFile(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(junk, []byte("not a certificate"), 0o600))

	_, err := New(config.NewRelicConfig{APIURL: "https://x", TLS: config.TLSConfig{CAFile: junk}},
		zaptest.NewLogger(t).Sugar())
	assert.ErrorContains(t, err, "no valid certs")

	_, err = New(config.NewRelicConfig{APIURL: "https://x", TLS: config.TLSConfig{CAFile: filepath.Join(dir, "absent.pem")}},
		zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsPermanent_OtherErrors(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("boom")))
}

// --- WriterShipper ---

func TestWriterShipper_OneLinePerEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Ship(context.Background(), []byte(`{"a":1}`)))
	require.NoError(t, w.Ship(context.Background(), []byte(`{"a":2}`)))

	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
}

func TestWriterShipper_DoesNotMutateInput(t *testing.T) {
	body := make([]byte, 3, 16)
	copy(body, "{ }")
	w := NewWriter(io.Discard)
	require.NoError(t, w.Ship(context.Background(), body))
	assert.Equal(t, "{ }", string(body[:cap(body)][:3]))
	assert.Equal(t, byte(0), body[:cap(body)][3])
}

// writeServerCA saves the httptest server's self-signed certificate as PEM.
func writeServerCA(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	cert := srv.Certificate()
	require.NotNil(t, cert)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})

	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return path
}
