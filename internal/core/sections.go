package core

// SectionID names a remote-configuration section within an experiment
// bundle. Section vocabularies are per bundle: homepage sections and
// tab-tray sections do not overlap.
type SectionID string

const (
	SectionJumpBackIn    SectionID = "jump-back-in"
	SectionRecentlySaved SectionID = "recently-saved"
	SectionPocket        SectionID = "pocket"
	SectionInactiveTabs  SectionID = "inactive-tabs"
)

// homepageSections maps the features backed by the homepage experiment
// bundle to their section identifiers. The mapping is deliberately partial;
// features outside it resolve to disabled.
var homepageSections = map[FeatureID]SectionID{
	FeatureJumpBackIn:    SectionJumpBackIn,
	FeatureRecentlySaved: SectionRecentlySaved,
	FeaturePocket:        SectionPocket,
}

// tabTraySections maps the features backed by the tab-tray experiment
// bundle to their section identifiers.
var tabTraySections = map[FeatureID]SectionID{
	FeatureInactiveTabs: SectionInactiveTabs,
}

// SectionSnapshot is a read-only, possibly-stale view of a remote bundle's
// section enablement. A nil SectionsEnabled map reads as everything
// disabled.
type SectionSnapshot struct {
	SectionsEnabled map[SectionID]bool
}

// RemoteConfigProvider supplies the current section snapshots for the two
// experiment bundles. The provider owns caching and refresh; the adapter
// never triggers a fetch itself.
type RemoteConfigProvider interface {
	HomepageSnapshot() SectionSnapshot
	TabTraySnapshot() SectionSnapshot
}

// LocaleSupport reports whether a content provider serves a given locale.
// It is consulted only for the pocket section.
type LocaleSupport interface {
	IsLocaleSupported(locale string) bool
}

// SectionAdapter resolves a feature's preference value from remote
// experiment sections. All collaborators are injected; the adapter holds no
// ambient state.
type SectionAdapter struct {
	provider RemoteConfigProvider
	locales  LocaleSupport
	locale   string
}

// NewSectionAdapter builds a SectionAdapter around a remote-configuration
// provider, a locale-support predicate, and the running build's locale
// identifier (e.g. "en-US").
func NewSectionAdapter(provider RemoteConfigProvider, locales LocaleSupport, locale string) *SectionAdapter {
	return &SectionAdapter{
		provider: provider,
		locales:  locales,
		locale:   locale,
	}
}

// ResolveHomepageSection resolves a homepage-backed feature against the
// homepage bundle snapshot. Features outside the homepage mapping, missing
// snapshots, and absent sections all resolve to disabled.
func (a *SectionAdapter) ResolveHomepageSection(id FeatureID) PreferenceValue {
	section, ok := homepageSections[id]
	if !ok {
		return PreferenceDisabled
	}

	if a == nil || a.provider == nil {
		return PreferenceDisabled
	}

	snapshot := a.provider.HomepageSnapshot()
	if !snapshot.SectionsEnabled[section] {
		return PreferenceDisabled
	}

	// Pocket content is only served in a fixed set of locales. The gate
	// runs after the section-map check so an already-disabled section never
	// triggers a locale lookup. No other section is locale-gated; a new
	// gated section needs its own named branch here.
	if section == SectionPocket && !a.localeSupported() {
		return PreferenceDisabled
	}

	return PreferenceEnabled
}

// ResolveTabTraySection resolves a tab-tray-backed feature against the
// tab-tray bundle snapshot. Same shape as the homepage resolution, with no
// locale gating.
func (a *SectionAdapter) ResolveTabTraySection(id FeatureID) PreferenceValue {
	section, ok := tabTraySections[id]
	if !ok {
		return PreferenceDisabled
	}

	if a == nil || a.provider == nil {
		return PreferenceDisabled
	}

	snapshot := a.provider.TabTraySnapshot()
	if !snapshot.SectionsEnabled[section] {
		return PreferenceDisabled
	}

	return PreferenceEnabled
}

func (a *SectionAdapter) localeSupported() bool {
	if a.locales == nil {
		return false
	}
	return a.locales.IsLocaleSupported(a.locale)
}
