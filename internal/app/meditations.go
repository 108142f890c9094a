package app

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"dailybread/api/internal/store"
	"dailybread/api/internal/util"
)

type CreateMeditationInput struct {
	SourceType  string `json:"sourceType"`
	SourceID    string `json:"sourceId"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
	IsAnonymous bool   `json:"isAnonymous"`

	MySentence       string `json:"mySentence"`
	MeditationAnswer string `json:"meditationAnswer"`
	Gratitude        string `json:"gratitude"`
	MyPrayer         string `json:"myPrayer"`
	DayReview        string `json:"dayReview"`
	Content          string `json:"content"`

	DayNumber  *int   `json:"dayNumber"`
	BibleRange string `json:"bibleRange"`
	QTDate     string `json:"qtDate"`
}

type UpdateMeditationInput struct {
	Visibility  string `json:"visibility"`
	IsAnonymous bool   `json:"isAnonymous"`

	MySentence       string `json:"mySentence"`
	MeditationAnswer string `json:"meditationAnswer"`
	Gratitude        string `json:"gratitude"`
	MyPrayer         string `json:"myPrayer"`
	DayReview        string `json:"dayReview"`
	Content          string `json:"content"`
}

type CreateReplyInput struct {
	Content         string  `json:"content"`
	IsAnonymous     bool    `json:"isAnonymous"`
	MentionUserID   *string `json:"mentionUserId"`
	MentionNickname *string `json:"mentionNickname"`
}

// allowedVisibilityBySource bounds how wide an item can be shared given
// where it is posted. Anything outside the set is rejected, not widened.
var allowedVisibilityBySource = map[string]map[string]struct{}{
	"group":  {"private": {}, "group": {}, "public": {}},
	"church": {"private": {}, "church": {}, "public": {}},
	"public": {"private": {}, "public": {}},
}

func defaultVisibility(sourceType string) string {
	switch sourceType {
	case "group":
		return "group"
	case "church":
		return "church"
	}
	return "public"
}

func (s *Service) CreateMeditation(ctx context.Context, session Session, input CreateMeditationInput) (store.UnifiedMeditation, error) {
	if _, ok := allowedContentTypes[input.ContentType]; !ok {
		return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "contentType must be one of qt, free, memo", nil)
	}

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = "public"
	}
	allowed, ok := allowedVisibilityBySource[sourceType]
	if !ok {
		return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceType must be one of group, church, public", nil)
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = defaultVisibility(sourceType)
	}
	if _, ok := allowed[visibility]; !ok {
		return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visibility is not allowed for this sourceType", nil)
	}

	var sourceID *string
	if sourceType != "public" {
		if input.SourceID == "" {
			return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceId is required for group and church posts", nil)
		}
		viewer, err := s.viewerContext(ctx, session, false)
		if err != nil {
			return store.UnifiedMeditation{}, err
		}
		switch sourceType {
		case "group":
			if !viewer.inGroup(input.SourceID) {
				return store.UnifiedMeditation{}, domainError(http.StatusForbidden, "FORBIDDEN", "you are not a member of this group", nil)
			}
		case "church":
			if !viewer.inChurch(input.SourceID) {
				return store.UnifiedMeditation{}, domainError(http.StatusForbidden, "FORBIDDEN", "you are not a member of this church", nil)
			}
		}
		id := input.SourceID
		sourceID = &id
	}

	if input.DayNumber != nil && (*input.DayNumber < 1 || *input.DayNumber > s.plan.TotalDays()) {
		return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dayNumber is out of plan range", nil)
	}

	if strings.TrimSpace(input.Content) == "" && strings.TrimSpace(input.MySentence) == "" && strings.TrimSpace(input.MeditationAnswer) == "" {
		return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "meditation content is empty", nil)
	}

	var qtDate *time.Time
	if input.QTDate != "" {
		parsed, err := time.Parse("2006-01-02", input.QTDate)
		if err != nil {
			return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "qtDate must be YYYY-MM-DD", nil)
		}
		qtDate = &parsed
	}

	userID := session.UserID
	m := store.UnifiedMeditation{
		ID:               util.NewID("med"),
		UserID:           &userID,
		AuthorName:       session.Nickname,
		IsAnonymous:      input.IsAnonymous,
		SourceType:       sourceType,
		SourceID:         sourceID,
		ContentType:      input.ContentType,
		Visibility:       visibility,
		MySentence:       input.MySentence,
		MeditationAnswer: input.MeditationAnswer,
		Gratitude:        input.Gratitude,
		MyPrayer:         input.MyPrayer,
		DayReview:        input.DayReview,
		Content:          input.Content,
		DayNumber:        input.DayNumber,
		BibleRange:       input.BibleRange,
		QTDate:           qtDate,
	}
	if err := s.store.InsertMeditation(ctx, m); err != nil {
		return store.UnifiedMeditation{}, err
	}

	created, err := s.store.GetMeditation(ctx, m.ID)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if s.search != nil {
		s.search.IndexMeditation(created)
	}
	return created, nil
}

func (s *Service) UpdateMeditation(ctx context.Context, session Session, id string, input UpdateMeditationInput) (store.UnifiedMeditation, error) {
	current, err := s.store.GetMeditation(ctx, id)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if current.UserID == nil || *current.UserID != session.UserID {
		// Non-owners get the same answer as a missing row.
		return store.UnifiedMeditation{}, sql.ErrNoRows
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = current.Visibility
	}
	if allowed, ok := allowedVisibilityBySource[current.SourceType]; ok {
		if _, ok := allowed[visibility]; !ok {
			return store.UnifiedMeditation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visibility is not allowed for this sourceType", nil)
		}
	}

	next := current
	next.Visibility = visibility
	next.IsAnonymous = input.IsAnonymous
	next.MySentence = input.MySentence
	next.MeditationAnswer = input.MeditationAnswer
	next.Gratitude = input.Gratitude
	next.MyPrayer = input.MyPrayer
	next.DayReview = input.DayReview
	next.Content = input.Content

	changed, err := s.store.UpdateMeditationContent(ctx, next)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if !changed {
		return store.UnifiedMeditation{}, sql.ErrNoRows
	}

	updated, err := s.store.GetMeditation(ctx, id)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if s.search != nil {
		s.search.IndexMeditation(updated)
	}
	return updated, nil
}

type MeditationDetail struct {
	Item    FeedItem          `json:"item"`
	Replies []MeditationReply `json:"replies"`
}

type MeditationReply struct {
	ID              string  `json:"id"`
	AuthorName      string  `json:"authorName"`
	IsAnonymous     bool    `json:"isAnonymous"`
	Content         string  `json:"content"`
	MentionUserID   *string `json:"mentionUserId,omitempty"`
	MentionNickname *string `json:"mentionNickname,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

// GetMeditationDetail returns one item with its replies. Denied viewers get
// the not-found answer, never a hint that the row exists.
func (s *Service) GetMeditationDetail(ctx context.Context, session Session, id string) (MeditationDetail, error) {
	m, err := s.store.GetMeditation(ctx, id)
	if err != nil {
		return MeditationDetail{}, err
	}
	viewer, err := s.viewerContext(ctx, session, false)
	if err != nil {
		return MeditationDetail{}, err
	}
	if !CanView(m, viewer) {
		return MeditationDetail{}, sql.ErrNoRows
	}

	items, err := s.enrichFeedItems(ctx, []store.UnifiedMeditation{m})
	if err != nil {
		return MeditationDetail{}, err
	}

	replies, err := s.store.ListReplies(ctx, id)
	if err != nil {
		return MeditationDetail{}, err
	}
	replyItems := make([]MeditationReply, 0, len(replies))
	for _, r := range replies {
		name := r.AuthorName
		if r.IsAnonymous {
			name = "익명"
		} else if name == "" {
			name = "알 수 없는 사용자"
		}
		replyItems = append(replyItems, MeditationReply{
			ID:              r.ID,
			AuthorName:      name,
			IsAnonymous:     r.IsAnonymous,
			Content:         r.Content,
			MentionUserID:   r.MentionUserID,
			MentionNickname: r.MentionNickname,
			CreatedAt:       r.CreatedAt.Format(time.RFC3339Nano),
		})
	}

	return MeditationDetail{Item: items[0], Replies: replyItems}, nil
}

func (s *Service) CreateReply(ctx context.Context, session Session, meditationID string, input CreateReplyInput) (MeditationDetail, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return MeditationDetail{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	m, err := s.store.GetMeditation(ctx, meditationID)
	if err != nil {
		return MeditationDetail{}, err
	}
	viewer, err := s.viewerContext(ctx, session, false)
	if err != nil {
		return MeditationDetail{}, err
	}
	if !CanView(m, viewer) {
		return MeditationDetail{}, sql.ErrNoRows
	}

	userID := session.UserID
	if err := s.store.InsertReply(ctx, store.MeditationReply{
		ID:              util.NewID("rep"),
		MeditationID:    meditationID,
		UserID:          &userID,
		AuthorName:      session.Nickname,
		Content:         content,
		IsAnonymous:     input.IsAnonymous,
		MentionUserID:   input.MentionUserID,
		MentionNickname: input.MentionNickname,
	}); err != nil {
		return MeditationDetail{}, err
	}
	return s.GetMeditationDetail(ctx, session, meditationID)
}

func (s *Service) DeleteReply(ctx context.Context, session Session, meditationID, replyID string) (MeditationDetail, error) {
	reply, err := s.store.GetReply(ctx, replyID)
	if err != nil {
		return MeditationDetail{}, err
	}
	if reply.MeditationID != meditationID {
		return MeditationDetail{}, sql.ErrNoRows
	}
	if reply.UserID == nil || *reply.UserID != session.UserID {
		return MeditationDetail{}, sql.ErrNoRows
	}

	deleted, err := s.store.DeleteReply(ctx, replyID, meditationID)
	if err != nil {
		return MeditationDetail{}, err
	}
	if !deleted {
		return MeditationDetail{}, sql.ErrNoRows
	}
	return s.GetMeditationDetail(ctx, session, meditationID)
}

type LikeResult struct {
	MeditationID string `json:"meditationId"`
	Liked        bool   `json:"liked"`
}

func (s *Service) ToggleLike(ctx context.Context, session Session, meditationID string) (LikeResult, error) {
	m, err := s.store.GetMeditation(ctx, meditationID)
	if err != nil {
		return LikeResult{}, err
	}
	viewer, err := s.viewerContext(ctx, session, false)
	if err != nil {
		return LikeResult{}, err
	}
	if !CanView(m, viewer) {
		return LikeResult{}, sql.ErrNoRows
	}

	liked, err := s.store.ToggleLike(ctx, meditationID, session.UserID)
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{MeditationID: meditationID, Liked: liked}, nil
}

// SetPinned pins an item to the top of its source timeline. Only the author
// may pin their own post.
func (s *Service) SetPinned(ctx context.Context, session Session, meditationID string, pinned bool) (store.UnifiedMeditation, error) {
	m, err := s.store.GetMeditation(ctx, meditationID)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if m.UserID == nil || *m.UserID != session.UserID {
		return store.UnifiedMeditation{}, sql.ErrNoRows
	}
	changed, err := s.store.SetMeditationPinned(ctx, meditationID, pinned)
	if err != nil {
		return store.UnifiedMeditation{}, err
	}
	if !changed {
		return store.UnifiedMeditation{}, sql.ErrNoRows
	}
	return s.store.GetMeditation(ctx, meditationID)
}
