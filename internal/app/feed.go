package app

import (
	"context"
	"net/http"
	"time"

	"dailybread/api/internal/store"
)

const (
	feedDefaultLimit = 20
	feedMaxLimit     = 100
)

var allowedFeedTabs = map[string]struct{}{
	"all":       {},
	"following": {},
	"group":     {},
	"church":    {},
}

var allowedContentTypes = map[string]struct{}{
	"qt":   {},
	"free": {},
	"memo": {},
}

type FeedItem struct {
	ID          string `json:"id"`
	AuthorName  string `json:"authorName"`
	IsAnonymous bool   `json:"isAnonymous"`

	SourceType string `json:"sourceType"`
	SourceID   string `json:"sourceId,omitempty"`
	SourceName string `json:"sourceName,omitempty"`

	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`

	MySentence       string `json:"mySentence,omitempty"`
	MeditationAnswer string `json:"meditationAnswer,omitempty"`
	Gratitude        string `json:"gratitude,omitempty"`
	MyPrayer         string `json:"myPrayer,omitempty"`
	DayReview        string `json:"dayReview,omitempty"`
	Content          string `json:"content,omitempty"`

	DayNumber  *int   `json:"dayNumber,omitempty"`
	BibleRange string `json:"bibleRange,omitempty"`
	QTDate     string `json:"qtDate,omitempty"`

	LikesCount   int  `json:"likesCount"`
	RepliesCount int  `json:"repliesCount"`
	IsPinned     bool `json:"isPinned"`

	CreatedAt string `json:"createdAt"`
}

type FeedPage struct {
	Items      []FeedItem `json:"items"`
	HasMore    bool       `json:"hasMore"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type FeedQuery struct {
	Tab         string
	ContentType string
	Cursor      string
	Limit       int
}

func emptyFeedPage() FeedPage {
	return FeedPage{Items: []FeedItem{}}
}

// GetFeed serves one page of the unified feed. Tab selection decides the
// candidate predicates, the store runs one page query, and a defensive
// visibility pass drops anything the viewer must not see before enrichment.
func (s *Service) GetFeed(ctx context.Context, session Session, q FeedQuery) (FeedPage, error) {
	tab := q.Tab
	if tab == "" {
		tab = "all"
	}
	if _, ok := allowedFeedTabs[tab]; !ok {
		return FeedPage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tab must be one of all, following, group, church", nil)
	}
	if q.ContentType != "" {
		if _, ok := allowedContentTypes[q.ContentType]; !ok {
			return FeedPage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be one of qt, free, memo", nil)
		}
	}
	if tab != "all" && session.UserID == "" {
		return FeedPage{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "sign in to use this tab", nil)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = feedDefaultLimit
	}
	if limit > feedMaxLimit {
		limit = feedMaxLimit
	}

	var before *time.Time
	if q.Cursor != "" {
		parsed, err := time.Parse(time.RFC3339Nano, q.Cursor)
		if err != nil {
			return FeedPage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cursor must be an RFC 3339 timestamp", nil)
		}
		before = &parsed
	}

	viewer, err := s.viewerContext(ctx, session, tab == "following")
	if err != nil {
		return FeedPage{}, err
	}

	filter := store.MeditationFilter{
		ViewerID: viewer.UserID,
		Before:   before,
		Limit:    limit + 1,
	}
	if q.ContentType != "" {
		filter.ContentTypes = []string{q.ContentType}
	}

	// Structurally empty tabs answer without touching the store.
	switch tab {
	case "all":
		// The all tab intentionally surfaces church-visible items to every
		// viewer; it is the shared public timeline.
		filter.Visibilities = []string{"public", "church"}
	case "following":
		if len(viewer.FollowingIDs) == 0 {
			return emptyFeedPage(), nil
		}
		// Same shared-visibility predicate as the all tab, narrowed to
		// followed authors.
		filter.Visibilities = []string{"public", "church"}
		filter.UserIDs = viewer.FollowingIDs
	case "group":
		if len(viewer.GroupIDs) == 0 {
			return emptyFeedPage(), nil
		}
		// QT entries live on personal and church timelines, never on group
		// timelines.
		if q.ContentType == "qt" {
			return emptyFeedPage(), nil
		}
		filter.SourceType = "group"
		filter.SourceIDs = viewer.GroupIDs
	case "church":
		if viewer.ChurchID == nil || *viewer.ChurchID == "" {
			return emptyFeedPage(), nil
		}
		filter.SourceType = "church"
		filter.SourceIDs = []string{*viewer.ChurchID}
	}

	rows, err := s.store.ListMeditations(ctx, filter)
	if err != nil {
		return FeedPage{}, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	visible := rows[:0]
	for _, m := range rows {
		if tab == "all" || tab == "following" {
			// Only public rows and church-timeline rows are shared; anything
			// else on these tabs must pass the full visibility check.
			ev := effectiveVisibility(m)
			shared := ev == "public" || (ev == "church" && m.SourceType == "church")
			if !shared && !CanView(m, viewer) {
				continue
			}
		} else if !CanView(m, viewer) {
			continue
		}
		visible = append(visible, m)
	}

	items, err := s.enrichFeedItems(ctx, visible)
	if err != nil {
		return FeedPage{}, err
	}

	page := FeedPage{Items: items, HasMore: hasMore}
	if hasMore && len(visible) > 0 {
		page.NextCursor = visible[len(visible)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return page, nil
}

// enrichFeedItems resolves author and source names for one page with at most
// three batched lookups: profiles, groups, then churches (including the
// churches reached through group membership).
func (s *Service) enrichFeedItems(ctx context.Context, rows []store.UnifiedMeditation) ([]FeedItem, error) {
	userIDs := make([]string, 0, len(rows))
	groupIDs := make([]string, 0, len(rows))
	churchIDs := make([]string, 0, len(rows))
	seenUser := map[string]struct{}{}
	seenGroup := map[string]struct{}{}
	seenChurch := map[string]struct{}{}

	for _, m := range rows {
		if m.UserID != nil && !m.IsAnonymous {
			if _, ok := seenUser[*m.UserID]; !ok {
				seenUser[*m.UserID] = struct{}{}
				userIDs = append(userIDs, *m.UserID)
			}
		}
		if m.SourceID == nil {
			continue
		}
		switch m.SourceType {
		case "group":
			if _, ok := seenGroup[*m.SourceID]; !ok {
				seenGroup[*m.SourceID] = struct{}{}
				groupIDs = append(groupIDs, *m.SourceID)
			}
		case "church":
			if _, ok := seenChurch[*m.SourceID]; !ok {
				seenChurch[*m.SourceID] = struct{}{}
				churchIDs = append(churchIDs, *m.SourceID)
			}
		}
	}

	profiles, err := s.store.ListProfilesByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	nicknameByID := make(map[string]string, len(profiles))
	for _, p := range profiles {
		nicknameByID[p.ID] = p.Nickname
	}

	groups, err := s.store.ListGroupsByIDs(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	groupByID := make(map[string]store.Group, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
		if g.ChurchID != nil {
			if _, ok := seenChurch[*g.ChurchID]; !ok {
				seenChurch[*g.ChurchID] = struct{}{}
				churchIDs = append(churchIDs, *g.ChurchID)
			}
		}
	}

	churches, err := s.store.ListChurchesByIDs(ctx, churchIDs)
	if err != nil {
		return nil, err
	}
	churchNameByID := make(map[string]string, len(churches))
	for _, c := range churches {
		churchNameByID[c.ID] = c.Name
	}

	items := make([]FeedItem, 0, len(rows))
	for _, m := range rows {
		item := FeedItem{
			ID:               m.ID,
			AuthorName:       resolveAuthorName(m, nicknameByID),
			IsAnonymous:      m.IsAnonymous,
			SourceType:       m.SourceType,
			ContentType:      m.ContentType,
			Visibility:       effectiveVisibility(m),
			MySentence:       m.MySentence,
			MeditationAnswer: m.MeditationAnswer,
			Gratitude:        m.Gratitude,
			MyPrayer:         m.MyPrayer,
			DayReview:        m.DayReview,
			Content:          m.Content,
			DayNumber:        m.DayNumber,
			BibleRange:       m.BibleRange,
			LikesCount:       m.LikesCount,
			RepliesCount:     m.RepliesCount,
			IsPinned:         m.IsPinned,
			CreatedAt:        m.CreatedAt.Format(time.RFC3339Nano),
		}
		if m.QTDate != nil {
			item.QTDate = m.QTDate.Format("2006-01-02")
		}
		if m.SourceID != nil {
			item.SourceID = *m.SourceID
			switch m.SourceType {
			case "group":
				if g, ok := groupByID[*m.SourceID]; ok {
					item.SourceName = g.Name
					if g.ChurchID != nil {
						if churchName, ok := churchNameByID[*g.ChurchID]; ok && churchName != "" {
							item.SourceName = churchName + " · " + g.Name
						}
					}
				}
			case "church":
				item.SourceName = churchNameByID[*m.SourceID]
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// resolveAuthorName applies the display-name precedence: anonymity first,
// then the name stored on the row, then the live profile nickname.
func resolveAuthorName(m store.UnifiedMeditation, nicknameByID map[string]string) string {
	if m.IsAnonymous {
		return "익명"
	}
	if m.AuthorName != "" {
		return m.AuthorName
	}
	if m.UserID != nil {
		if nickname, ok := nicknameByID[*m.UserID]; ok && nickname != "" {
			return nickname
		}
	}
	return "알 수 없는 사용자"
}
