// Package service orchestrates feature-status resolution over the
// persistent preference store and the remote section adapter. It owns the
// per-feature registry of default-enabled build channels and presents the
// core's fault-free store contract by absorbing repository errors: a failed
// read resolves as "no override", a failed write is logged and dropped.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/toggld/toggld/internal/core"
	"github.com/toggld/toggld/internal/repository"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrNotTogglable   = errors.New("feature is not user-togglable")
	ErrEmptyOption    = errors.New("option is empty")
)

// Store is the persistence layer the service binds request contexts onto.
// Implemented by [repository.PostgresStore].
type Store interface {
	GetBool(ctx context.Context, key string) (bool, bool, error)
	GetString(ctx context.Context, key string) (string, bool, error)
	SetBool(ctx context.Context, key string, value bool) error
	SetString(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]repository.Preference, error)
}

// FeatureStatus is the resolved state of one feature.
type FeatureStatus struct {
	ID        core.FeatureID `json:"id"`
	Active    bool           `json:"active"`
	Option    string         `json:"option"`
	Togglable bool           `json:"togglable"`
}

// enabledChannels lists, per feature, the build channels the feature is
// active in when no override is persisted. Features absent from this map
// default to no channels, i.e. inactive everywhere until toggled.
var enabledChannels = map[core.FeatureID][]core.BuildChannel{
	core.FeatureBottomSearchBar:   {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureHistoryHighlights: {core.ChannelDeveloper},
	core.FeatureInactiveTabs:      {core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureJumpBackIn:        {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
	core.FeaturePocket:            {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureRecentlySaved:     {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureReportSiteIssue:   {core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureShakeToRestore:    {core.ChannelDeveloper},
	core.FeatureStartAtHome:       {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
	core.FeatureWallpapers:        {core.ChannelRelease, core.ChannelBeta, core.ChannelDeveloper},
}

// Option configures optional service parameters.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithResolutionMetrics registers callbacks fired on resolutions, toggles,
// and option writes (e.g. Prometheus counters).
func WithResolutionMetrics(onResolve, onToggle, onOptionWrite func(feature string)) Option {
	return func(s *Service) {
		s.onResolve = onResolve
		s.onToggle = onToggle
		s.onOptionWrite = onOptionWrite
	}
}

// Service resolves and mutates feature state. Safe for concurrent use; all
// mutable state lives in the injected store.
type Service struct {
	store    Store
	sections *core.SectionAdapter
	channel  core.BuildChannel
	log      *slog.Logger

	onResolve     func(feature string)
	onToggle      func(feature string)
	onOptionWrite func(feature string)
}

// New creates a Service resolving against store and sections for a build
// on the given channel.
func New(store Store, sections *core.SectionAdapter, channel core.BuildChannel, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}

	s := &Service{
		store:    store,
		sections: sections,
		channel:  channel,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// Status resolves the current state of one feature.
func (s *Service) Status(ctx context.Context, id core.FeatureID) (FeatureStatus, error) {
	if !core.KnownFeature(id) {
		return FeatureStatus{}, ErrUnknownFeature
	}

	return s.status(ctx, id), nil
}

// ListStatuses resolves the current state of every feature in the closed
// set, ordered by identifier.
func (s *Service) ListStatuses(ctx context.Context) ([]FeatureStatus, error) {
	statuses := make([]FeatureStatus, 0, len(core.Features()))
	for _, id := range core.Features() {
		statuses = append(statuses, s.status(ctx, id))
	}

	return statuses, nil
}

// Toggle flips the feature's persisted active state and returns the
// resulting status. Channel-only features cannot be toggled.
func (s *Service) Toggle(ctx context.Context, id core.FeatureID) (FeatureStatus, error) {
	if !core.KnownFeature(id) {
		return FeatureStatus{}, ErrUnknownFeature
	}

	resolver := s.resolver(ctx, id)
	if !resolver.Togglable() {
		return FeatureStatus{}, ErrNotTogglable
	}

	resolver.ToggleBuildFeature()
	if s.onToggle != nil {
		s.onToggle(string(id))
	}

	return s.status(ctx, id), nil
}

// SetOption persists an option value for the feature and returns the
// resulting status. The option's semantic fit for the feature is the
// caller's responsibility; only emptiness and togglability are checked
// here, mirroring the resolver's own no-op rules.
func (s *Service) SetOption(ctx context.Context, id core.FeatureID, option string) (FeatureStatus, error) {
	if !core.KnownFeature(id) {
		return FeatureStatus{}, ErrUnknownFeature
	}
	if option == "" {
		return FeatureStatus{}, ErrEmptyOption
	}

	resolver := s.resolver(ctx, id)
	if !resolver.Togglable() {
		return FeatureStatus{}, ErrNotTogglable
	}

	resolver.SetUserPreference(option)
	if s.onOptionWrite != nil {
		s.onOptionWrite(string(id))
	}

	return s.status(ctx, id), nil
}

// ListPreferences returns the raw persisted preference rows for inspection.
func (s *Service) ListPreferences(ctx context.Context) ([]repository.Preference, error) {
	return s.store.List(ctx)
}

func (s *Service) status(ctx context.Context, id core.FeatureID) FeatureStatus {
	resolver := s.resolver(ctx, id)
	if s.onResolve != nil {
		s.onResolve(string(id))
	}

	return FeatureStatus{
		ID:        id,
		Active:    resolver.IsActiveForBuild(),
		Option:    resolver.UserPreference(),
		Togglable: resolver.Togglable(),
	}
}

func (s *Service) resolver(ctx context.Context, id core.FeatureID) *core.FlagResolver {
	bound := &boundStore{ctx: ctx, store: s.store, log: s.log}
	return core.NewFlagResolver(id, enabledChannels[id], s.channel, bound, s.sections)
}

// boundStore adapts the context-aware Store to the core's fault-free
// PreferenceStore contract for the duration of one request. Read errors
// resolve as absent so resolution falls through to the next precedence
// tier; write errors are logged and dropped.
type boundStore struct {
	ctx   context.Context
	store Store
	log   *slog.Logger
}

func (b *boundStore) GetBool(key string) (bool, bool) {
	value, found, err := b.store.GetBool(b.ctx, key)
	if err != nil {
		b.log.Error("preference read failed", "key", key, "error", err)
		return false, false
	}
	return value, found
}

func (b *boundStore) GetString(key string) (string, bool) {
	value, found, err := b.store.GetString(b.ctx, key)
	if err != nil {
		b.log.Error("preference read failed", "key", key, "error", err)
		return "", false
	}
	return value, found
}

func (b *boundStore) SetBool(key string, value bool) {
	if err := b.store.SetBool(b.ctx, key, value); err != nil {
		b.log.Error("preference write failed", "key", key, "error", err)
	}
}

func (b *boundStore) SetString(key, value string) {
	if err := b.store.SetString(b.ctx, key, value); err != nil {
		b.log.Error("preference write failed", "key", key, "error", err)
	}
}
