package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toggld/toggld/internal/core"
	"github.com/toggld/toggld/internal/repository"
	"github.com/toggld/toggld/internal/service"
)

// fakeService returns canned statuses and records mutations.
type fakeService struct {
	statuses map[core.FeatureID]service.FeatureStatus
	toggled  []core.FeatureID
	options  map[core.FeatureID]string
}

func newFakeService() *fakeService {
	return &fakeService{
		statuses: map[core.FeatureID]service.FeatureStatus{
			core.FeatureWallpapers: {ID: core.FeatureWallpapers, Active: true, Option: "enabled", Togglable: true},
			core.FeatureStartAtHome: {
				ID: core.FeatureStartAtHome, Active: true, Option: core.StartAtHomeAfterFourHours, Togglable: true,
			},
		},
		options: make(map[core.FeatureID]string),
	}
}

func (f *fakeService) Status(_ context.Context, id core.FeatureID) (service.FeatureStatus, error) {
	status, ok := f.statuses[id]
	if !ok {
		return service.FeatureStatus{}, service.ErrUnknownFeature
	}
	return status, nil
}

func (f *fakeService) ListStatuses(_ context.Context) ([]service.FeatureStatus, error) {
	statuses := make([]service.FeatureStatus, 0, len(f.statuses))
	for _, status := range f.statuses {
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (f *fakeService) Toggle(ctx context.Context, id core.FeatureID) (service.FeatureStatus, error) {
	status, ok := f.statuses[id]
	if !ok {
		return service.FeatureStatus{}, service.ErrUnknownFeature
	}
	if !status.Togglable {
		return service.FeatureStatus{}, service.ErrNotTogglable
	}
	status.Active = !status.Active
	f.statuses[id] = status
	f.toggled = append(f.toggled, id)
	return status, nil
}

func (f *fakeService) SetOption(_ context.Context, id core.FeatureID, option string) (service.FeatureStatus, error) {
	status, ok := f.statuses[id]
	if !ok {
		return service.FeatureStatus{}, service.ErrUnknownFeature
	}
	if option == "" {
		return service.FeatureStatus{}, service.ErrEmptyOption
	}
	f.options[id] = option
	status.Option = option
	f.statuses[id] = status
	return status, nil
}

func (f *fakeService) ListPreferences(_ context.Context) ([]repository.Preference, error) {
	return []repository.Preference{{Key: "Wallpapers"}}, nil
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request)
	return rec
}

func TestListFeatures(t *testing.T) {
	handler := NewHTTPHandler(newFakeService())

	rec := doRequest(t, handler, http.MethodGet, "/v1/features", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var statuses []service.FeatureStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
}

func TestGetFeature(t *testing.T) {
	handler := NewHTTPHandler(newFakeService())

	rec := doRequest(t, handler, http.MethodGet, "/v1/features/wallpapers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status service.FeatureStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.ID != core.FeatureWallpapers || !status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestGetFeature_Unknown(t *testing.T) {
	handler := NewHTTPHandler(newFakeService())

	rec := doRequest(t, handler, http.MethodGet, "/v1/features/bogus", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestToggleFeature(t *testing.T) {
	svc := newFakeService()
	handler := NewHTTPHandler(svc)

	rec := doRequest(t, handler, http.MethodPost, "/v1/features/wallpapers/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status service.FeatureStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Active {
		t.Error("toggle should deactivate an active feature")
	}
	if len(svc.toggled) != 1 || svc.toggled[0] != core.FeatureWallpapers {
		t.Fatalf("toggled = %v", svc.toggled)
	}
}

func TestSetOption(t *testing.T) {
	svc := newFakeService()
	handler := NewHTTPHandler(svc)

	rec := doRequest(t, handler, http.MethodPut, "/v1/features/startAtHome/option", `{"option":"always"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.options[core.FeatureStartAtHome] != "always" {
		t.Fatalf("option = %q, want always", svc.options[core.FeatureStartAtHome])
	}
}

func TestSetOption_BadRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "empty option", body: `{"option":""}`, wantStatus: http.StatusBadRequest},
		{name: "malformed JSON", body: `{option}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"value":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "trailing garbage", body: `{"option":"x"}{}`, wantStatus: http.StatusBadRequest},
	}

	handler := NewHTTPHandler(newFakeService())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodPut, "/v1/features/startAtHome/option", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSetOption_BodyTooLarge(t *testing.T) {
	handler := NewHTTPHandler(newFakeService(), WithMaxJSONBodySize(16))

	rec := doRequest(t, handler, http.MethodPut, "/v1/features/startAtHome/option",
		`{"option":"`+strings.Repeat("x", 64)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestListPreferences(t *testing.T) {
	handler := NewHTTPHandler(newFakeService())

	rec := doRequest(t, handler, http.MethodGet, "/v1/preferences", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var preferences []repository.Preference
	if err := json.Unmarshal(rec.Body.Bytes(), &preferences); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(preferences) != 1 || preferences[0].Key != "Wallpapers" {
		t.Fatalf("unexpected preferences: %+v", preferences)
	}
}

func TestHealthz(t *testing.T) {
	handler := NewHTTPHandler(newFakeService())

	rec := doRequest(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddlewareProtectsMutatingRoutesOnly(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
	handler := NewHTTPHandler(newFakeService(), WithAuthMiddleware(deny))

	if rec := doRequest(t, handler, http.MethodGet, "/v1/features", ""); rec.Code != http.StatusOK {
		t.Fatalf("read route status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodPost, "/v1/features/wallpapers/toggle", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("toggle status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodPut, "/v1/features/startAtHome/option", `{"option":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("option status = %d, want 401", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	handler := NewHTTPHandler(newFakeService(), WithMetricsHandler(metricsHandler))

	rec := doRequest(t, handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Fatalf("metrics route: status %d body %q", rec.Code, rec.Body.String())
	}
}
