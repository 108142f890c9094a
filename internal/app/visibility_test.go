package app

import (
	"testing"

	"dailybread/api/internal/store"
)

func strPtr(s string) *string { return &s }

func TestCanViewTiers(t *testing.T) {
	owner := "usr_owner"
	other := "usr_other"
	church := "ch_1"
	group := "grp_1"

	member := ViewerContext{UserID: other, GroupIDs: []string{group}, ChurchID: &church}
	outsider := ViewerContext{UserID: "usr_stranger"}
	anonymous := ViewerContext{}

	cases := []struct {
		name   string
		item   store.UnifiedMeditation
		viewer ViewerContext
		want   bool
	}{
		{"public visible to anonymous", store.UnifiedMeditation{Visibility: "public", SourceType: "public"}, anonymous, true},
		{"public visible to outsider", store.UnifiedMeditation{Visibility: "public", SourceType: "public"}, outsider, true},
		{"private visible to owner", store.UnifiedMeditation{Visibility: "private", UserID: &owner}, ViewerContext{UserID: owner}, true},
		{"private hidden from others", store.UnifiedMeditation{Visibility: "private", UserID: &owner}, member, false},
		{"private hidden from anonymous", store.UnifiedMeditation{Visibility: "private", UserID: &owner}, anonymous, false},
		{"group visible to member", store.UnifiedMeditation{Visibility: "group", SourceType: "group", SourceID: &group}, member, true},
		{"group hidden from non-member", store.UnifiedMeditation{Visibility: "group", SourceType: "group", SourceID: &group}, outsider, false},
		{"group visible to owner outside group", store.UnifiedMeditation{Visibility: "group", SourceType: "group", SourceID: &group, UserID: &owner}, ViewerContext{UserID: owner}, true},
		{"church visible to church member", store.UnifiedMeditation{Visibility: "church", SourceType: "church", SourceID: &church}, member, true},
		{"church hidden from non-member", store.UnifiedMeditation{Visibility: "church", SourceType: "church", SourceID: &church}, outsider, false},
		{"church value on group item reads as group for member", store.UnifiedMeditation{Visibility: "church", SourceType: "group", SourceID: &group}, member, true},
		{"church value on group item hidden from church member outside group", store.UnifiedMeditation{Visibility: "church", SourceType: "group", SourceID: &group}, ViewerContext{UserID: "usr_pew", ChurchID: &church}, false},
		{"church value on group item hidden from anonymous", store.UnifiedMeditation{Visibility: "church", SourceType: "group", SourceID: &group}, anonymous, false},
		{"group value on church item reads as church", store.UnifiedMeditation{Visibility: "group", SourceType: "church", SourceID: &church}, member, true},
		{"group item without source hidden", store.UnifiedMeditation{Visibility: "group", SourceType: "group"}, member, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.item, tc.viewer); got != tc.want {
				t.Errorf("CanView = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanViewFailsClosedOnBadVisibility(t *testing.T) {
	church := "ch_1"
	group := "grp_1"
	member := ViewerContext{UserID: "usr_1", GroupIDs: []string{group}, ChurchID: &church}

	// Unrecognized values collapse to the narrowest tier the source implies.
	groupItem := store.UnifiedMeditation{Visibility: "everyone", SourceType: "group", SourceID: &group}
	if !CanView(groupItem, member) {
		t.Error("bad visibility on group item should collapse to group, visible to member")
	}
	if CanView(groupItem, ViewerContext{UserID: "usr_2"}) {
		t.Error("bad visibility on group item should stay hidden from non-members")
	}

	churchItem := store.UnifiedMeditation{Visibility: "", SourceType: "church", SourceID: &church}
	if !CanView(churchItem, member) {
		t.Error("missing visibility on church item should collapse to church")
	}

	// Anything else collapses to private.
	orphan := store.UnifiedMeditation{Visibility: "banana", SourceType: "public"}
	if CanView(orphan, member) {
		t.Error("unclassifiable item should be hidden")
	}
}

func TestCanViewZeroMembershipViewer(t *testing.T) {
	group := "grp_1"
	church := "ch_1"
	viewer := ViewerContext{UserID: "usr_lonely"}

	if CanView(store.UnifiedMeditation{Visibility: "group", SourceType: "group", SourceID: &group}, viewer) {
		t.Error("viewer with no groups should never see group items")
	}
	if CanView(store.UnifiedMeditation{Visibility: "church", SourceType: "church", SourceID: &church}, viewer) {
		t.Error("viewer with no church should never see church items")
	}
	if !CanView(store.UnifiedMeditation{Visibility: "public", SourceType: "public"}, viewer) {
		t.Error("viewer with no memberships still sees public items")
	}
}
