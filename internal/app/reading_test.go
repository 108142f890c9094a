package app

import (
	"context"
	"errors"
	"testing"

	"dailybread/api/internal/store"
)

func TestCalculateStreak(t *testing.T) {
	tests := []struct {
		name         string
		checkedDays  []int
		currentDay   int
		current      int
		longest      int
		todayChecked bool
	}{
		{
			name:        "no checks",
			checkedDays: nil,
			currentDay:  10,
		},
		{
			name:         "unbroken run ending today",
			checkedDays:  []int{1, 2, 3, 4, 5},
			currentDay:   5,
			current:      5,
			longest:      5,
			todayChecked: true,
		},
		{
			name:        "unchecked today falls back to yesterday",
			checkedDays: []int{1, 2, 3, 4, 5, 6},
			currentDay:  7,
			current:     6,
			longest:     6,
		},
		{
			name:        "gap before yesterday breaks the streak",
			checkedDays: []int{1, 2, 3, 4, 5},
			currentDay:  8,
			current:     0,
			longest:     5,
		},
		{
			name:         "gap then resumption keeps longest",
			checkedDays:  []int{1, 2, 3, 4, 5, 7},
			currentDay:   7,
			current:      1,
			longest:      5,
			todayChecked: true,
		},
		{
			name:         "longest run in the middle",
			checkedDays:  []int{1, 3, 4, 5, 6, 9},
			currentDay:   9,
			current:      1,
			longest:      4,
			todayChecked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateStreak(tt.checkedDays, tt.currentDay)
			if got.CurrentStreak != tt.current {
				t.Fatalf("current streak = %d, want %d", got.CurrentStreak, tt.current)
			}
			if got.LongestStreak != tt.longest {
				t.Fatalf("longest streak = %d, want %d", got.LongestStreak, tt.longest)
			}
			if got.TodayChecked != tt.todayChecked {
				t.Fatalf("todayChecked = %v, want %v", got.TodayChecked, tt.todayChecked)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 365, 0},
		{1, 365, 0},
		{2, 365, 1},
		{183, 365, 50},
		{365, 365, 100},
		{400, 365, 100}, // clamped
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := progressPercent(tt.completed, tt.total); got != tt.want {
			t.Fatalf("progressPercent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestToggleReadingFlipsState(t *testing.T) {
	checked := map[int]bool{}
	fs := &fakeStore{
		deleteReadingCheckFn: func(_ context.Context, _, _, _ string, day int) (bool, error) {
			if checked[day] {
				delete(checked, day)
				return true, nil
			}
			return false, nil
		},
		insertReadingCheckFn: func(_ context.Context, check store.ReadingCheck) (bool, error) {
			checked[check.DayNumber] = true
			return true, nil
		},
	}
	svc := newTestService(fs, nil)
	session := memberSession()

	first, err := svc.ToggleReading(context.Background(), session, "personal", "", 12)
	if err != nil {
		t.Fatalf("first toggle error = %v", err)
	}
	if !first.Checked {
		t.Fatalf("expected first toggle to check the day")
	}

	second, err := svc.ToggleReading(context.Background(), session, "personal", "", 12)
	if err != nil {
		t.Fatalf("second toggle error = %v", err)
	}
	if second.Checked {
		t.Fatalf("expected second toggle to uncheck the day")
	}
	if len(checked) != 0 {
		t.Fatalf("expected clean end state, got %v", checked)
	}
}

func TestToggleReadingRejectsOutOfRangeDay(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	for _, day := range []int{0, -3, 366} {
		_, err := svc.ToggleReading(context.Background(), memberSession(), "personal", "", day)
		var domainErr *DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
			t.Fatalf("day %d: expected VALIDATION_ERROR, got %v", day, err)
		}
	}
}

func TestReadingContextPersonalIsKeyedByOwner(t *testing.T) {
	var gotSourceType, gotSourceID string
	fs := &fakeStore{
		listReadingChecksFn: func(_ context.Context, _, sourceType, sourceID string) ([]store.ReadingCheck, error) {
			gotSourceType, gotSourceID = sourceType, sourceID
			return nil, nil
		},
	}
	svc := newTestService(fs, nil)

	state, err := svc.GetReadings(context.Background(), memberSession(), "", "")
	if err != nil {
		t.Fatalf("GetReadings() error = %v", err)
	}
	if gotSourceType != "personal" || gotSourceID != "usr_viewer" {
		t.Fatalf("expected personal context keyed by viewer, got %s/%s", gotSourceType, gotSourceID)
	}
	if state.SourceID != "" {
		t.Fatalf("personal state must not expose a sourceId, got %q", state.SourceID)
	}
	if state.CheckedDays == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}

func TestReadingContextValidation(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	_, err := svc.GetReadings(context.Background(), memberSession(), "group", "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for group without sourceId, got %v", err)
	}

	_, err = svc.GetReadings(context.Background(), memberSession(), "cohort", "x")
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for unknown sourceType, got %v", err)
	}
}

func TestGetProgressCountsCheckedDays(t *testing.T) {
	fs := &fakeStore{
		listReadingChecksFn: func(context.Context, string, string, string) ([]store.ReadingCheck, error) {
			checks := make([]store.ReadingCheck, 0, 183)
			for day := 1; day <= 183; day++ {
				checks = append(checks, store.ReadingCheck{DayNumber: day})
			}
			return checks, nil
		},
	}
	svc := newTestService(fs, nil)

	progress, err := svc.GetProgress(context.Background(), memberSession(), "personal", "")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if progress.CompletedDays != 183 || progress.TotalDays != 365 || progress.Percent != 50 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestGetAllGroupReadingsUsesOneBatchedQuery(t *testing.T) {
	listCalls := 0
	fs := &fakeStore{
		groupIDsForUserFn: func(context.Context, string) ([]string, error) {
			return []string{"group_1", "group_2", "group_3"}, nil
		},
		listGroupReadingsFn: func(_ context.Context, _ string, groupIDs []string) ([]store.ReadingCheck, error) {
			listCalls++
			if len(groupIDs) != 3 {
				t.Fatalf("expected all group ids in one query, got %v", groupIDs)
			}
			return []store.ReadingCheck{
				{SourceID: "group_1", DayNumber: 1},
				{SourceID: "group_1", DayNumber: 2},
				{SourceID: "group_3", DayNumber: 7},
			}, nil
		},
	}
	svc := newTestService(fs, nil)

	states, err := svc.GetAllGroupReadings(context.Background(), memberSession())
	if err != nil {
		t.Fatalf("GetAllGroupReadings() error = %v", err)
	}
	if listCalls != 1 {
		t.Fatalf("expected one batched query, got %d", listCalls)
	}
	if len(states) != 3 {
		t.Fatalf("expected a state per group, got %d", len(states))
	}
	byGroup := map[string][]int{}
	for _, state := range states {
		byGroup[state.GroupID] = state.CheckedDays
	}
	if len(byGroup["group_1"]) != 2 || len(byGroup["group_3"]) != 1 {
		t.Fatalf("unexpected grouping: %v", byGroup)
	}
	if byGroup["group_2"] == nil {
		t.Fatalf("expected empty slice for group without checks")
	}
}

func TestGetAllGroupReadingsWithoutGroups(t *testing.T) {
	listCalls := 0
	fs := &fakeStore{
		listGroupReadingsFn: func(context.Context, string, []string) ([]store.ReadingCheck, error) {
			listCalls++
			return nil, nil
		},
	}
	svc := newTestService(fs, nil)

	states, err := svc.GetAllGroupReadings(context.Background(), memberSession())
	if err != nil {
		t.Fatalf("GetAllGroupReadings() error = %v", err)
	}
	if len(states) != 0 || listCalls != 0 {
		t.Fatalf("expected empty answer without a store query")
	}
}
