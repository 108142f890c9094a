package app

import (
	"context"
	"errors"
	"testing"

	"dailybread/api/internal/store"
)

func meditationFakeStore(inserted *store.UnifiedMeditation) *fakeStore {
	churchID := "church_1"
	return &fakeStore{
		getProfileByIDFn: func(_ context.Context, userID string) (store.Profile, error) {
			return store.Profile{ID: userID, Nickname: "은혜", ChurchID: &churchID}, nil
		},
		groupIDsForUserFn: func(context.Context, string) ([]string, error) {
			return []string{"group_1"}, nil
		},
		insertMeditationFn: func(_ context.Context, m store.UnifiedMeditation) error {
			*inserted = m
			return nil
		},
		getMeditationFn: func(context.Context, string) (store.UnifiedMeditation, error) {
			return *inserted, nil
		},
	}
}

func TestCreateMeditationVisibilityBySource(t *testing.T) {
	cases := []struct {
		name       string
		sourceType string
		sourceID   string
		visibility string
		wantCode   string
	}{
		{"group post shared to group", "group", "group_1", "group", ""},
		{"group post shared publicly", "group", "group_1", "public", ""},
		{"group post kept private", "group", "group_1", "private", ""},
		{"church post shared to church", "church", "church_1", "church", ""},
		{"church post shared publicly", "church", "church_1", "public", ""},
		{"church value on group post rejected", "group", "group_1", "church", "VALIDATION_ERROR"},
		{"group value on church post rejected", "church", "church_1", "group", "VALIDATION_ERROR"},
		{"group value on public post rejected", "public", "", "group", "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var inserted store.UnifiedMeditation
			svc := newTestService(meditationFakeStore(&inserted), nil)

			_, err := svc.CreateMeditation(context.Background(), memberSession(), CreateMeditationInput{
				SourceType:  tc.sourceType,
				SourceID:    tc.sourceID,
				ContentType: "free",
				Visibility:  tc.visibility,
				Content:     "오늘의 묵상",
			})
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("CreateMeditation() error = %v", err)
				}
				if inserted.Visibility != tc.visibility {
					t.Fatalf("expected visibility %q stored, got %q", tc.visibility, inserted.Visibility)
				}
				return
			}
			var domainErr *DomainError
			if !errors.As(err, &domainErr) || domainErr.Code != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestCreateMeditationDefaultsVisibilityToSourceTier(t *testing.T) {
	var inserted store.UnifiedMeditation
	svc := newTestService(meditationFakeStore(&inserted), nil)

	_, err := svc.CreateMeditation(context.Background(), memberSession(), CreateMeditationInput{
		SourceType:  "group",
		SourceID:    "group_1",
		ContentType: "free",
		Content:     "오늘의 묵상",
	})
	if err != nil {
		t.Fatalf("CreateMeditation() error = %v", err)
	}
	if inserted.Visibility != "group" {
		t.Fatalf("expected group default for group post, got %q", inserted.Visibility)
	}
}

func TestUpdateMeditationRevalidatesVisibility(t *testing.T) {
	owner := "usr_viewer"
	sourceID := "church_1"
	current := store.UnifiedMeditation{
		ID:          "med_1",
		UserID:      &owner,
		SourceType:  "church",
		SourceID:    &sourceID,
		ContentType: "free",
		Visibility:  "church",
		Content:     "오늘의 묵상",
	}
	var updated store.UnifiedMeditation
	fs := &fakeStore{
		getMeditationFn: func(context.Context, string) (store.UnifiedMeditation, error) {
			return current, nil
		},
		updateMeditationContentFn: func(_ context.Context, m store.UnifiedMeditation) (bool, error) {
			updated = m
			return true, nil
		},
	}
	svc := newTestService(fs, nil)

	// Widening a church post to public is a valid share option.
	_, err := svc.UpdateMeditation(context.Background(), memberSession(), "med_1", UpdateMeditationInput{
		Visibility: "public",
		Content:    "고친 묵상",
	})
	if err != nil {
		t.Fatalf("UpdateMeditation() error = %v", err)
	}
	if updated.Visibility != "public" {
		t.Fatalf("expected public stored, got %q", updated.Visibility)
	}

	// A group value does not fit a church post.
	_, err = svc.UpdateMeditation(context.Background(), memberSession(), "med_1", UpdateMeditationInput{
		Visibility: "group",
		Content:    "고친 묵상",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
