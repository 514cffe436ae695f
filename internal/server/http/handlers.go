package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/service"
)

const (
	contentTypePass    = "application/vnd.apple.pkpass"
	contentDisposition = "attachment; filename=pass.pkpass"
)

type registerRequest struct {
	PushToken string `json:"pushToken"`
}

type logRequest struct {
	Logs []string `json:"logs"`
}

// param returns the unescaped path parameter; chi matches on the raw path when one is set.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRegister: 201 on a new registration, 200 when it already existed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Registrations.Register(r.Context(),
		param(r, "deviceID"), param(r, "passTypeID"), param(r, "serial"),
		req.PushToken, r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res == service.Created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Registrations.Unregister(r.Context(),
		param(r, "deviceID"), param(r, "passTypeID"), param(r, "serial"),
		r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListUpdated(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if q := r.URL.Query(); q.Has("passesUpdatedSince") {
		ts, err := service.ParseTimestamp(q.Get("passesUpdatedSince"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		since = &ts
	}
	res, err := s.svc.Updates.ListUpdated(r.Context(), param(r, "deviceID"), param(r, "passTypeID"), since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatestPass(w http.ResponseWriter, r *http.Request) {
	var ims *time.Time
	if v := r.Header.Get("If-Modified-Since"); v != "" {
		// an unparseable date means an unconditional request
		if t, err := http.ParseTime(v); err == nil {
			ims = &t
		}
	}
	d, err := s.svc.Delivery.FetchCurrent(r.Context(),
		param(r, "passTypeID"), param(r, "serial"), r.Header.Get("Authorization"), ims)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Last-Modified", d.LastModified.UTC().Format(http.TimeFormat))
	if d.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentTypePass)
	w.Header().Set("Content-Disposition", contentDisposition)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Body)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Logs.SubmitLogs(r.Context(), r.RemoteAddr, req.Logs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.Join(errs.ErrBadRequest, err)
	}
	return nil
}

// writeError maps domain errors to status codes; anything unrecognised is a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		http.Error(w, "ApplePass auth must be used", http.StatusUnauthorized)
	case errors.Is(err, errs.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, errs.ErrNoUpdates):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errs.ErrBadRequest):
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, errs.ErrRateLimited):
		var rl *service.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("route", routePattern(r)),
			zap.Error(err),
		)
		http.Error(w, "internal", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
