package core

import "sort"

// OptionsKeySuffix is appended to a feature's preference key to derive the
// key its option value is persisted under. The relationship is a plain
// concatenation so inspection tooling can invert it mechanically.
const OptionsKeySuffix = "UserPreferences"

// preferenceKeys is the single source of truth correlating feature
// identifiers to storage keys. A feature absent from this table has no
// persisted override and cannot be user-toggled; it resolves purely from
// build-channel membership. Every independently controllable feature must
// have an entry here.
var preferenceKeys = map[FeatureID]string{
	FeatureBottomSearchBar:   "SearchBarPosition",
	FeatureHistoryHighlights: "HistoryHighlightsSection",
	FeatureInactiveTabs:      "InactiveTabs",
	FeatureJumpBackIn:        "JumpBackInSection",
	FeaturePocket:            "PocketSection",
	FeatureRecentlySaved:     "RecentlySavedSection",
	FeatureStartAtHome:       "StartAtHome",
	FeatureWallpapers:        "Wallpapers",
}

// DeriveKey returns the persisted-preference key for a feature. The second
// return value is false for features with no table entry; that is not an
// error condition.
func DeriveKey(id FeatureID) (string, bool) {
	key, ok := preferenceKeys[id]
	return key, ok
}

// DeriveOptionsKey appends OptionsKeySuffix to a derived preference key.
// An empty key, as returned by DeriveKey for features with no table entry,
// yields no options key.
func DeriveOptionsKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	return key + OptionsKeySuffix, true
}

// Features returns every identifier in the closed set, sorted.
func Features() []FeatureID {
	ids := []FeatureID{
		FeatureBottomSearchBar,
		FeatureHistoryHighlights,
		FeatureInactiveTabs,
		FeatureJumpBackIn,
		FeaturePocket,
		FeatureRecentlySaved,
		FeatureReportSiteIssue,
		FeatureShakeToRestore,
		FeatureStartAtHome,
		FeatureWallpapers,
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// KnownFeature reports whether id belongs to the closed identifier set.
func KnownFeature(id FeatureID) bool {
	for _, known := range Features() {
		if known == id {
			return true
		}
	}
	return false
}
