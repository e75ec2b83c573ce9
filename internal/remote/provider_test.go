package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/toggld/toggld/internal/core"
)

const sampleDocument = `{
	"homepage": {"sectionsEnabled": {"jump-back-in": true, "pocket": true, "recently-saved": false}},
	"tabTray": {"sectionsEnabled": {"inactive-tabs": true}},
	"pocketLocales": ["en-US", "en-CA", "de"]
}`

func newDocumentServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRefresh_PopulatesSnapshots(t *testing.T) {
	server := newDocumentServer(t, http.StatusOK, sampleDocument)
	provider := New(server.URL)

	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	homepage := provider.HomepageSnapshot()
	if !homepage.SectionsEnabled[core.SectionJumpBackIn] {
		t.Error("jump-back-in should be enabled")
	}
	if homepage.SectionsEnabled[core.SectionRecentlySaved] {
		t.Error("recently-saved should be disabled")
	}

	tabTray := provider.TabTraySnapshot()
	if !tabTray.SectionsEnabled[core.SectionInactiveTabs] {
		t.Error("inactive-tabs should be enabled")
	}
}

func TestSnapshots_FailClosedBeforeFirstFetch(t *testing.T) {
	provider := New("http://127.0.0.1:0/unreachable")

	if enabled := provider.HomepageSnapshot().SectionsEnabled[core.SectionJumpBackIn]; enabled {
		t.Error("homepage sections should read disabled before any fetch")
	}
	if enabled := provider.TabTraySnapshot().SectionsEnabled[core.SectionInactiveTabs]; enabled {
		t.Error("tab-tray sections should read disabled before any fetch")
	}
	if provider.IsLocaleSupported("en-US") {
		t.Error("no locale should be supported before any fetch")
	}
}

func TestRefresh_FailureKeepsLastGoodSnapshot(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleDocument))
	}))
	defer server.Close()

	provider := New(server.URL)
	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	failing.Store(true)
	if err := provider.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should fail on a 500")
	}

	if !provider.HomepageSnapshot().SectionsEnabled[core.SectionJumpBackIn] {
		t.Error("last good snapshot should survive a failed refresh")
	}
}

func TestRefresh_BadJSON(t *testing.T) {
	server := newDocumentServer(t, http.StatusOK, "{not json")
	provider := New(server.URL)

	if err := provider.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should fail on malformed JSON")
	}
}

func TestRefresh_ReportsOutcome(t *testing.T) {
	outcomes := make([]bool, 0, 2)
	server := newDocumentServer(t, http.StatusOK, sampleDocument)

	provider := New(server.URL, WithOnRefresh(func(ok bool) { outcomes = append(outcomes, ok) }))
	_ = provider.Refresh(context.Background())

	bad := New("http://127.0.0.1:0/unreachable", WithOnRefresh(func(ok bool) { outcomes = append(outcomes, ok) }))
	_ = bad.Refresh(context.Background())

	if len(outcomes) != 2 || !outcomes[0] || outcomes[1] {
		t.Fatalf("refresh outcomes = %v, want [true false]", outcomes)
	}
}

func TestIsLocaleSupported(t *testing.T) {
	provider := NewStatic(nil, nil, []string{"en-US", "en-CA", "de"})

	tests := []struct {
		locale string
		want   bool
	}{
		{"en-US", true},
		{"EN-us", true},
		{"en-CA", true},
		{"de-DE", true}, // bare "de" covers regional variants
		{"de", true},
		{"en-GB", false},
		{"fr-FR", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := provider.IsLocaleSupported(tt.locale); got != tt.want {
			t.Errorf("IsLocaleSupported(%q) = %t, want %t", tt.locale, got, tt.want)
		}
	}
}

func TestNewStatic_SeedsSnapshots(t *testing.T) {
	provider := NewStatic(
		map[core.SectionID]bool{core.SectionPocket: true},
		map[core.SectionID]bool{core.SectionInactiveTabs: true},
		[]string{"en-US"},
	)

	if !provider.HomepageSnapshot().SectionsEnabled[core.SectionPocket] {
		t.Error("pocket should be enabled in the static homepage snapshot")
	}
	if !provider.TabTraySnapshot().SectionsEnabled[core.SectionInactiveTabs] {
		t.Error("inactive-tabs should be enabled in the static tab-tray snapshot")
	}
}
