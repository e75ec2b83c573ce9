// Package remote caches the experiment-configuration document the section
// adapter reads its snapshots from. The provider owns fetching and refresh;
// readers only ever see the last good snapshot, and a provider that has
// never fetched successfully reads as everything disabled.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/toggld/toggld/internal/core"
)

const fetchTimeout = 10 * time.Second

// document is the wire shape of the experiment-configuration endpoint.
type document struct {
	Homepage      bundle   `json:"homepage"`
	TabTray       bundle   `json:"tabTray"`
	PocketLocales []string `json:"pocketLocales"`
}

type bundle struct {
	SectionsEnabled map[string]bool `json:"sectionsEnabled"`
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithOnRefresh registers a callback invoked after every refresh attempt
// with its outcome (e.g. to increment a Prometheus counter).
func WithOnRefresh(fn func(ok bool)) Option {
	return func(p *Provider) { p.onRefresh = fn }
}

// Provider fetches and caches the experiment-configuration document. It
// implements [core.RemoteConfigProvider] and [core.LocaleSupport].
type Provider struct {
	url       string
	client    *http.Client
	log       *slog.Logger
	onRefresh func(ok bool)

	mu       sync.RWMutex
	snapshot *document
}

// New creates a Provider fetching from url. An empty url yields a provider
// that never fetches and always reads as disabled.
func New(url string, opts ...Option) *Provider {
	p := &Provider{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: fetchTimeout},
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewStatic creates a Provider pre-seeded with fixed snapshots and no
// fetch endpoint. Intended for tests and air-gapped deployments.
func NewStatic(homepage, tabTray map[core.SectionID]bool, pocketLocales []string) *Provider {
	doc := &document{
		Homepage:      bundle{SectionsEnabled: sectionsToWire(homepage)},
		TabTray:       bundle{SectionsEnabled: sectionsToWire(tabTray)},
		PocketLocales: pocketLocales,
	}
	return &Provider{log: slog.Default(), snapshot: doc}
}

// Start performs an initial fetch and then refreshes every interval until
// ctx is cancelled. A failed initial fetch is logged, not fatal: the
// provider keeps serving the empty (fail-closed) snapshot and retries on
// the next tick.
func (p *Provider) Start(ctx context.Context, interval time.Duration) {
	if p.url == "" {
		return
	}

	if err := p.Refresh(ctx); err != nil {
		p.log.Warn("initial remote config fetch failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.Refresh(ctx); err != nil {
					p.log.Warn("remote config refresh failed", "error", err)
				}
			}
		}
	}()
}

// Refresh fetches the document once and swaps it in on success. On failure
// the previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	err := p.refresh(ctx)
	if p.onRefresh != nil {
		p.onRefresh(err == nil)
	}
	return err
}

func (p *Provider) refresh(ctx context.Context) error {
	if p.url == "" {
		return errors.New("no remote config url configured")
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch remote config: unexpected status %d", resp.StatusCode)
	}

	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode remote config: %w", err)
	}

	p.mu.Lock()
	p.snapshot = &doc
	p.mu.Unlock()

	p.log.Debug("remote config refreshed",
		"homepage_sections", len(doc.Homepage.SectionsEnabled),
		"tab_tray_sections", len(doc.TabTray.SectionsEnabled),
		"pocket_locales", len(doc.PocketLocales),
	)

	return nil
}

// HomepageSnapshot returns the current homepage bundle snapshot. With no
// snapshot the returned map is nil, which reads as everything disabled.
func (p *Provider) HomepageSnapshot() core.SectionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.snapshot == nil {
		return core.SectionSnapshot{}
	}
	return core.SectionSnapshot{SectionsEnabled: sectionsFromWire(p.snapshot.Homepage.SectionsEnabled)}
}

// TabTraySnapshot returns the current tab-tray bundle snapshot.
func (p *Provider) TabTraySnapshot() core.SectionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.snapshot == nil {
		return core.SectionSnapshot{}
	}
	return core.SectionSnapshot{SectionsEnabled: sectionsFromWire(p.snapshot.TabTray.SectionsEnabled)}
}

// IsLocaleSupported reports whether the pocket content provider serves the
// given locale per the current snapshot. Matching is case-insensitive on
// the full identifier first, then on the bare language subtag, so "en"
// in the allowlist covers "en-GB". No snapshot means no supported locales.
func (p *Provider) IsLocaleSupported(locale string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.snapshot == nil {
		return false
	}

	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		return false
	}
	language, _, _ := strings.Cut(locale, "-")

	for _, supported := range p.snapshot.PocketLocales {
		supported = strings.ToLower(strings.TrimSpace(supported))
		if supported == locale || supported == language {
			return true
		}
	}

	return false
}

func sectionsToWire(sections map[core.SectionID]bool) map[string]bool {
	wire := make(map[string]bool, len(sections))
	for id, enabled := range sections {
		wire[string(id)] = enabled
	}
	return wire
}

func sectionsFromWire(wire map[string]bool) map[core.SectionID]bool {
	if wire == nil {
		return nil
	}
	sections := make(map[core.SectionID]bool, len(wire))
	for id, enabled := range wire {
		sections[core.SectionID(id)] = enabled
	}
	return sections
}
