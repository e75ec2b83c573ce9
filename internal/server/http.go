// Package server exposes the feature-resolution service over HTTP with a
// JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/toggld/toggld/internal/core"
	"github.com/toggld/toggld/internal/repository"
	"github.com/toggld/toggld/internal/service"
)

const maxJSONBodyBytes = 1 << 20

var errJSONBodyTooLarge = errors.New("json request body too large")

// Service is the resolution surface the HTTP handlers call into.
type Service interface {
	Status(ctx context.Context, id core.FeatureID) (service.FeatureStatus, error)
	ListStatuses(ctx context.Context) ([]service.FeatureStatus, error)
	Toggle(ctx context.Context, id core.FeatureID) (service.FeatureStatus, error)
	SetOption(ctx context.Context, id core.FeatureID, option string) (service.FeatureStatus, error)
	ListPreferences(ctx context.Context) ([]repository.Preference, error)
}

// HTTPServer serves the feature-resolution JSON API.
type HTTPServer struct {
	service         Service
	metricsHandler  http.Handler
	authMiddleware  func(http.Handler) http.Handler
	maxJSONBodySize int64
}

type optionJSONRequest struct {
	Option string `json:"option"`
}

// Option configures optional HTTP handler parameters.
type Option func(*HTTPServer)

// WithMetricsHandler mounts handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *HTTPServer) { s.metricsHandler = handler }
}

// WithAuthMiddleware wraps the mutating routes (toggle and option writes)
// with mw. Read routes stay open.
func WithAuthMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(s *HTTPServer) { s.authMiddleware = mw }
}

// WithMaxJSONBodySize caps JSON request bodies at n bytes.
func WithMaxJSONBodySize(n int64) Option {
	return func(s *HTTPServer) {
		if n > 0 {
			s.maxJSONBodySize = n
		}
	}
}

// NewHTTPHandler builds the API handler around svc.
func NewHTTPHandler(svc Service, opts ...Option) http.Handler {
	if svc == nil {
		panic("service is nil")
	}

	server := &HTTPServer{
		service:         svc,
		maxJSONBodySize: maxJSONBodyBytes,
	}
	for _, o := range opts {
		o(server)
	}

	protect := func(h http.HandlerFunc) http.Handler {
		if server.authMiddleware == nil {
			return h
		}
		return server.authMiddleware(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/features", server.handleListFeatures)
	mux.HandleFunc("GET /v1/features/{id}", server.handleGetFeature)
	mux.Handle("POST /v1/features/{id}/toggle", protect(server.handleToggleFeature))
	mux.Handle("PUT /v1/features/{id}/option", protect(server.handleSetOption))
	mux.HandleFunc("GET /v1/preferences", server.handleListPreferences)
	mux.HandleFunc("GET /healthz", server.handleHealthz)
	if server.metricsHandler != nil {
		mux.Handle("GET /metrics", server.metricsHandler)
	}

	return mux
}

func (s *HTTPServer) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.service.ListStatuses(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

func (s *HTTPServer) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "feature id is required")
		return
	}

	status, err := s.service.Status(r.Context(), core.FeatureID(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleToggleFeature(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "feature id is required")
		return
	}

	status, err := s.service.Toggle(r.Context(), core.FeatureID(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleSetOption(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "feature id is required")
		return
	}

	var request optionJSONRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	status, err := s.service.SetOption(r.Context(), core.FeatureID(id), request.Option)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	preferences, err := s.service.ListPreferences(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preferences)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownFeature):
		writeJSONError(w, http.StatusNotFound, serviceErrorMessage(err))
	case errors.Is(err, service.ErrNotTogglable), errors.Is(err, service.ErrEmptyOption):
		writeJSONError(w, http.StatusBadRequest, serviceErrorMessage(err))
	case errors.Is(err, context.Canceled):
		writeJSONError(w, http.StatusRequestTimeout, serviceErrorMessage(err))
	default:
		writeJSONError(w, http.StatusInternalServerError, serviceErrorMessage(err))
	}
}

func serviceErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownFeature):
		return "unknown feature"
	case errors.Is(err, service.ErrNotTogglable):
		return "feature is not user-togglable"
	case errors.Is(err, service.ErrEmptyOption):
		return "option is required"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return "internal server error"
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errJSONBodyTooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *HTTPServer) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxJSONBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return normalizeJSONDecodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("request body must contain a single JSON object")
		}
		return normalizeJSONDecodeError(err)
	}

	return nil
}

func normalizeJSONDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errJSONBodyTooLarge
	}
	return err
}
