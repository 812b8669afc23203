package reporter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewayipsync/client/httpretry"
)

func TestReport_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "unchanged", status: http.StatusNoContent},
		{name: "updated", status: http.StatusOK, body: `{"Updated":true,"CurrentIp":"10.0.0.2"}`},
		{name: "updated garbage body", status: http.StatusOK, body: `nope`},
		{name: "bad request", status: http.StatusBadRequest, body: "Supplied value was not a valid IP Address.", wantErr: true},
		{name: "internal", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "10.0.0.2", string(body))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(srv.Client(), srv.URL).Report(context.Background(), "10.0.0.2")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReport_WithRetryTransport(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "10.0.0.2", string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: httpretry.NewTransport(nil, httpretry.DefaultAttempts, time.Millisecond, time.Second)}
	require.NoError(t, New(client, srv.URL).Report(context.Background(), "10.0.0.2"))
	assert.Equal(t, int32(2), calls.Load())
}
