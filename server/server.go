package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"gatewayipsync/reconciler"
)

const (
	maxBody        = 1024
	invalidIPError = "Supplied value was not a valid IP Address."
)

type Reconciler interface {
	Reconcile(ctx context.Context, requestedIP string) reconciler.Outcome
}

type updateResponse struct {
	Updated   bool   `json:"Updated"`
	CurrentIP string `json:"CurrentIp"`
}

// NewHandler routes the updater endpoint plus metrics and health.
func NewHandler(r Reconciler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /gateway/ip", updateIPHandler(r))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func updateIPHandler(r Reconciler) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		w := &statusWriter{ResponseWriter: rw}
		defer recoverInternalError(w)

		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, invalidIPError, http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("[server]: failed to read request body")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		out := r.Reconcile(req.Context(), strings.TrimSpace(string(body)))
		switch {
		case out.Status == reconciler.Unchanged:
			w.WriteHeader(http.StatusNoContent)
		case out.Status == reconciler.Updated:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(updateResponse{Updated: true, CurrentIP: out.IP})
		case errors.Is(out.Err, reconciler.ErrInvalidInput):
			http.Error(w, invalidIPError, http.StatusBadRequest)
		default:
			log.Error().Err(out.Err).Msgf("[server]: failed to update the local gateway ip address to %s", out.IP)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

// statusWriter remembers whether a status line has gone out.
type statusWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// recoverInternalError must be deferred directly. It answers 500 only when
// the handler had not started its response yet.
func recoverInternalError(w *statusWriter) {
	p := recover()
	if p == nil {
		return
	}
	log.Error().Msgf("[server]: failed to update the local gateway ip address: %v", p)
	if !w.wroteHeader {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Run serves handler on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("[server]: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
