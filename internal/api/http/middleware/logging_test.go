package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
)

func TestLogging_RecordsStatusAndPath(t *testing.T) {
	var buf bytes.Buffer
	l := &logger.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	mw := NewLogging(l)

	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vaults", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "/api/v1/vaults")
	assert.Contains(t, out, "418")
}

func TestLogging_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	l := &logger.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	mw := NewLogging(l)

	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit 200"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Contains(t, buf.String(), "status=200")
}
