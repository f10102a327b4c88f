package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Router serves the recorder over HTTP:
//
//	GET /metrics   Prometheus text exposition
//	GET /healthz   200 while samples are fresh, 503 otherwise
//	GET /envelope  last delivered envelope, 204 before the first one
func Router(rec *Recorder, logger *zap.SugaredLogger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := rec.WriteText(w); err != nil {
			logger.Warnw("telemetry: write metrics", "err", err)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ok, last := rec.Healthy()
		resp := healthResponse{Status: "ok"}
		if !last.IsZero() {
			resp.LastSuccess = last.UTC().Format(time.RFC3339)
		}
		code := http.StatusOK
		if !ok {
			resp.Status = "stale"
			code = http.StatusServiceUnavailable
		}
		jsonResp(w, code, resp)
	})

	r.Get("/envelope", func(w http.ResponseWriter, _ *http.Request) {
		env := rec.Envelope()
		if env == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(env)
	})

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	LastSuccess string `json:"last_success,omitempty"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request at debug level.
func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debugw("telemetry: request",
				"uri", r.RequestURI,
				"method", r.Method,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.SugaredLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, h, logger)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *zap.SugaredLogger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("telemetry: listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
