package app

import (
	"context"
	"math"
	"net/http"
	"time"

	"dailybread/api/internal/store"
)

// ReadingContext names one reading timeline: a user's personal plan, a
// group's shared plan, or a church-wide plan.
type ReadingContext struct {
	SourceType string
	SourceID   string
}

var allowedReadingSources = map[string]struct{}{
	"personal": {},
	"group":    {},
	"church":   {},
}

func (s *Service) readingContext(session Session, sourceType, sourceID string) (ReadingContext, error) {
	if sourceType == "" {
		sourceType = "personal"
	}
	if _, ok := allowedReadingSources[sourceType]; !ok {
		return ReadingContext{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceType must be one of personal, group, church", nil)
	}
	if sourceType == "personal" {
		// Personal timelines are keyed by the owner.
		return ReadingContext{SourceType: "personal", SourceID: session.UserID}, nil
	}
	if sourceID == "" {
		return ReadingContext{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceId is required for group and church readings", nil)
	}
	return ReadingContext{SourceType: sourceType, SourceID: sourceID}, nil
}

type ToggleReadingResult struct {
	Day     int  `json:"day"`
	Checked bool `json:"checked"`
}

// ToggleReading flips one day between read and unread. Delete-then-insert
// keeps the operation idempotent: the unique key absorbs concurrent
// double-toggles.
func (s *Service) ToggleReading(ctx context.Context, session Session, sourceType, sourceID string, day int) (ToggleReadingResult, error) {
	rc, err := s.readingContext(session, sourceType, sourceID)
	if err != nil {
		return ToggleReadingResult{}, err
	}
	if day < 1 || day > s.plan.TotalDays() {
		return ToggleReadingResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "day is out of plan range", nil)
	}

	deleted, err := s.store.DeleteReadingCheck(ctx, session.UserID, rc.SourceType, rc.SourceID, day)
	if err != nil {
		return ToggleReadingResult{}, err
	}
	if deleted {
		return ToggleReadingResult{Day: day, Checked: false}, nil
	}

	if _, err := s.store.InsertReadingCheck(ctx, store.ReadingCheck{
		UserID:     session.UserID,
		SourceType: rc.SourceType,
		SourceID:   rc.SourceID,
		DayNumber:  day,
	}); err != nil {
		return ToggleReadingResult{}, err
	}
	return ToggleReadingResult{Day: day, Checked: true}, nil
}

type ReadingState struct {
	SourceType  string `json:"sourceType"`
	SourceID    string `json:"sourceId,omitempty"`
	CheckedDays []int  `json:"checkedDays"`
}

func (s *Service) GetReadings(ctx context.Context, session Session, sourceType, sourceID string) (ReadingState, error) {
	rc, err := s.readingContext(session, sourceType, sourceID)
	if err != nil {
		return ReadingState{}, err
	}
	checks, err := s.store.ListReadingChecks(ctx, session.UserID, rc.SourceType, rc.SourceID)
	if err != nil {
		return ReadingState{}, err
	}
	state := ReadingState{SourceType: rc.SourceType, CheckedDays: make([]int, 0, len(checks))}
	if rc.SourceType != "personal" {
		state.SourceID = rc.SourceID
	}
	for _, c := range checks {
		state.CheckedDays = append(state.CheckedDays, c.DayNumber)
	}
	return state, nil
}

type ReadingProgress struct {
	CompletedDays int `json:"completedDays"`
	TotalDays     int `json:"totalDays"`
	Percent       int `json:"percent"`
}

func (s *Service) GetProgress(ctx context.Context, session Session, sourceType, sourceID string) (ReadingProgress, error) {
	state, err := s.GetReadings(ctx, session, sourceType, sourceID)
	if err != nil {
		return ReadingProgress{}, err
	}
	total := s.plan.TotalDays()
	return ReadingProgress{
		CompletedDays: len(state.CheckedDays),
		TotalDays:     total,
		Percent:       progressPercent(len(state.CheckedDays), total),
	}, nil
}

func progressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	percent := int(math.Round(float64(completed) / float64(total) * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

type ReadingStreak struct {
	CurrentStreak int  `json:"currentStreak"`
	LongestStreak int  `json:"longestStreak"`
	TodayChecked  bool `json:"todayChecked"`
}

func (s *Service) GetStreak(ctx context.Context, session Session, sourceType, sourceID string) (ReadingStreak, error) {
	state, err := s.GetReadings(ctx, session, sourceType, sourceID)
	if err != nil {
		return ReadingStreak{}, err
	}
	return calculateStreak(state.CheckedDays, s.plan.CurrentDay(time.Now())), nil
}

// calculateStreak walks backward from the current plan day. An unchecked
// current day does not break the streak until the day is over, so the walk
// may start from yesterday; anything earlier breaks it.
func calculateStreak(checkedDays []int, currentDay int) ReadingStreak {
	checked := make(map[int]bool, len(checkedDays))
	maxDay := 0
	for _, day := range checkedDays {
		checked[day] = true
		if day > maxDay {
			maxDay = day
		}
	}

	streak := ReadingStreak{TodayChecked: checked[currentDay]}

	start := currentDay
	if !checked[start] {
		start = currentDay - 1
	}
	for day := start; day >= 1 && checked[day]; day-- {
		streak.CurrentStreak++
	}

	run := 0
	for day := 1; day <= maxDay; day++ {
		if checked[day] {
			run++
			if run > streak.LongestStreak {
				streak.LongestStreak = run
			}
		} else {
			run = 0
		}
	}
	return streak
}

type GroupReadingState struct {
	GroupID     string `json:"groupId"`
	CheckedDays []int  `json:"checkedDays"`
}

// GetAllGroupReadings loads the caller's checks across every group they
// belong to with a single batched query.
func (s *Service) GetAllGroupReadings(ctx context.Context, session Session) ([]GroupReadingState, error) {
	groupIDs, err := s.store.GroupIDsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return []GroupReadingState{}, nil
	}

	checks, err := s.store.ListGroupReadings(ctx, session.UserID, groupIDs)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string][]int)
	for _, c := range checks {
		byGroup[c.SourceID] = append(byGroup[c.SourceID], c.DayNumber)
	}

	states := make([]GroupReadingState, 0, len(groupIDs))
	for _, id := range groupIDs {
		days := byGroup[id]
		if days == nil {
			days = []int{}
		}
		states = append(states, GroupReadingState{GroupID: id, CheckedDays: days})
	}
	return states, nil
}
