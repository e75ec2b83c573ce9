package core

import "slices"

// FlagResolver answers whether a single feature is active and what its
// configured option value is. Each instance is bound to one feature, the
// channels that feature defaults to active in, and the build's channel.
// The resolver does not own the preference store; it is stateless between
// calls apart from these immutable fields.
type FlagResolver struct {
	feature         FeatureID
	enabledChannels []BuildChannel
	channel         BuildChannel
	store           PreferenceStore
	sections        *SectionAdapter
}

// NewFlagResolver builds a resolver for one feature. enabledChannels lists
// the build channels the feature is active in when no override is
// persisted; channel is the channel the running build was compiled for.
func NewFlagResolver(feature FeatureID, enabledChannels []BuildChannel, channel BuildChannel, store PreferenceStore, sections *SectionAdapter) *FlagResolver {
	return &FlagResolver{
		feature:         feature,
		enabledChannels: slices.Clone(enabledChannels),
		channel:         channel,
		store:           store,
		sections:        sections,
	}
}

// Feature returns the identifier this resolver is bound to.
func (r *FlagResolver) Feature() FeatureID {
	return r.feature
}

// Togglable reports whether the feature has a derived key and can therefore
// carry a persisted override.
func (r *FlagResolver) Togglable() bool {
	_, ok := DeriveKey(r.feature)
	return ok
}

// IsActiveForBuild resolves the feature's active state. A persisted boolean
// override is authoritative; without one the result is membership of the
// build's channel in the enabled-channel set. Reads never mutate the store.
func (r *FlagResolver) IsActiveForBuild() bool {
	if key, ok := DeriveKey(r.feature); ok {
		if value, ok := r.store.GetBool(key); ok {
			return value
		}
	}
	return slices.Contains(r.enabledChannels, r.channel)
}

// UserPreference resolves the feature's option value. A persisted string at
// the options key is authoritative; otherwise per-feature hardcoded
// defaults apply, then the section-backed remote defaults, then the generic
// disabled literal. Every identifier lands in exactly one branch.
func (r *FlagResolver) UserPreference() string {
	if key, ok := DeriveKey(r.feature); ok {
		if optionsKey, ok := DeriveOptionsKey(key); ok {
			if value, ok := r.store.GetString(optionsKey); ok {
				return value
			}
		}
	}

	switch r.feature {
	case FeatureStartAtHome:
		return StartAtHomeAfterFourHours
	case FeatureWallpapers:
		return string(PreferenceEnabled)
	case FeatureJumpBackIn, FeatureRecentlySaved, FeaturePocket:
		return string(r.sections.ResolveHomepageSection(r.feature))
	case FeatureInactiveTabs:
		return string(r.sections.ResolveTabTraySection(r.feature))
	default:
		return string(PreferenceDisabled)
	}
}

// SetUserPreference persists option under the feature's options key. Empty
// options and features with no derivable options key are no-ops; the store
// is left untouched. The option's semantic fit for the feature is the
// caller's responsibility.
func (r *FlagResolver) SetUserPreference(option string) {
	if option == "" {
		return
	}

	key, ok := DeriveKey(r.feature)
	if !ok {
		return
	}
	optionsKey, ok := DeriveOptionsKey(key)
	if !ok {
		return
	}

	r.store.SetString(optionsKey, option)
}

// ToggleBuildFeature persists the negation of the current IsActiveForBuild
// result under the feature's key. Features with no derivable key are
// channel-only and this is a no-op. The read and the write are separate
// store calls; a concurrent writer can interleave between them, and the
// store's own discipline governs that case.
func (r *FlagResolver) ToggleBuildFeature() {
	key, ok := DeriveKey(r.feature)
	if !ok {
		return
	}

	r.store.SetBool(key, !r.IsActiveForBuild())
}
