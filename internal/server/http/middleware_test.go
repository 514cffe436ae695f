package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_CatchesPanic(t *testing.T) {
	t.Parallel()
	h := Recover(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oh no")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

func TestRecover_NoPanicPassThrough(t *testing.T) {
	t.Parallel()
	h := Recover(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("want 418, got %d", rec.Code)
	}
}

func TestLogging_RecordsStatusAndRoute(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logging(zap.New(core)))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/body", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/body", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 lines, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["code"] != int64(http.StatusNoContent) || first["route"] != "/items/{id}" || first["reqId"] == "" {
		t.Fatalf("unexpected fields: %v", first)
	}
	second := entries[1].ContextMap()
	if second["code"] != int64(http.StatusOK) || second["bytes"] != int64(5) {
		t.Fatalf("unexpected fields: %v", second)
	}
}
