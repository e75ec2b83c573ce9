// Package core implements feature-toggle resolution: mapping feature
// identifiers to persisted-preference keys, adapting remote experiment
// sections into preference values, and resolving a feature's active state
// and option value across the persisted-override, computed-default, and
// build-channel tiers.
package core

// FeatureID identifies a togglable capability. The set of identifiers is
// closed; values outside it resolve with no derived key and fall back to
// build-channel membership only.
type FeatureID string

const (
	FeatureBottomSearchBar   FeatureID = "bottomSearchBar"
	FeatureHistoryHighlights FeatureID = "historyHighlights"
	FeatureInactiveTabs      FeatureID = "inactiveTabs"
	FeatureJumpBackIn        FeatureID = "jumpBackIn"
	FeaturePocket            FeatureID = "pocket"
	FeatureRecentlySaved     FeatureID = "recentlySaved"
	FeatureReportSiteIssue   FeatureID = "reportSiteIssue"
	FeatureShakeToRestore    FeatureID = "shakeToRestore"
	FeatureStartAtHome       FeatureID = "startAtHome"
	FeatureWallpapers        FeatureID = "wallpapers"
)

// BuildChannel is the distribution tier the running build belongs to.
// Exactly one channel is active for the life of a build; it is fixed at
// compile time and never re-evaluated.
type BuildChannel string

const (
	ChannelRelease   BuildChannel = "release"
	ChannelBeta      BuildChannel = "beta"
	ChannelDeveloper BuildChannel = "developer"
	ChannelOther     BuildChannel = "other"
)

// ParseBuildChannel maps a channel name to a BuildChannel. Unrecognised
// names map to ChannelOther rather than failing.
func ParseBuildChannel(s string) BuildChannel {
	switch BuildChannel(s) {
	case ChannelRelease, ChannelBeta, ChannelDeveloper:
		return BuildChannel(s)
	default:
		return ChannelOther
	}
}

// PreferenceValue is the canonical option value used when a feature has no
// richer option type.
type PreferenceValue string

const (
	PreferenceEnabled  PreferenceValue = "enabled"
	PreferenceDisabled PreferenceValue = "disabled"
)

// StartAtHomeAfterFourHours is the literal default option for the
// startAtHome feature when nothing is persisted.
const StartAtHomeAfterFourHours = "afterFourHours"

// PreferenceStore is the flat key/value store the resolver reads overrides
// from and writes them to. Lookups report presence with the second return
// value; absence is an expected steady state, not an error. Implementations
// absorb their own faults before returning.
type PreferenceStore interface {
	GetBool(key string) (bool, bool)
	GetString(key string) (string, bool)
	SetBool(key string, value bool)
	SetString(key, value string)
}
