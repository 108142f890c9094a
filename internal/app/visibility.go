package app

import "dailybread/api/internal/store"

// ViewerContext carries everything visibility resolution needs about the
// requesting user. A zero value is an anonymous viewer with no memberships.
type ViewerContext struct {
	UserID       string
	GroupIDs     []string
	ChurchID     *string
	FollowingIDs []string
}

func (v ViewerContext) inGroup(groupID string) bool {
	for _, id := range v.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

func (v ViewerContext) inChurch(churchID string) bool {
	return v.ChurchID != nil && *v.ChurchID == churchID
}

// effectiveVisibility collapses a visibility value the item's source does not
// allow to the narrowest tier the source implies. A church value on a group
// post reads as group, and anything unclassifiable reads as private; bad data
// never widens access.
func effectiveVisibility(m store.UnifiedMeditation) string {
	if allowed, ok := allowedVisibilityBySource[m.SourceType]; ok {
		if _, ok := allowed[m.Visibility]; ok {
			return m.Visibility
		}
	}
	switch m.SourceType {
	case "group":
		return "group"
	case "church":
		return "church"
	}
	return "private"
}

// CanView decides whether the viewer may see one meditation. It is total:
// every combination of item state and viewer state yields an answer, and
// anything it cannot classify is denied.
func CanView(m store.UnifiedMeditation, viewer ViewerContext) bool {
	switch effectiveVisibility(m) {
	case "public":
		return true
	case "private":
		return viewer.UserID != "" && m.UserID != nil && *m.UserID == viewer.UserID
	case "group":
		if viewer.UserID != "" && m.UserID != nil && *m.UserID == viewer.UserID {
			return true
		}
		return m.SourceID != nil && viewer.inGroup(*m.SourceID)
	case "church":
		if viewer.UserID != "" && m.UserID != nil && *m.UserID == viewer.UserID {
			return true
		}
		return m.SourceID != nil && viewer.inChurch(*m.SourceID)
	}
	return false
}
