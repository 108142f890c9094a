package search

import (
	"strings"
	"time"

	"dailybread/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	AuthorName  string `json:"authorName"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
	Snippet     string `json:"snippet"`
	BibleRange  string `json:"bibleRange,omitempty"`
	DayNumber   int    `json:"dayNumber,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Results is the envelope returned by the search endpoint.
type Results struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Query describes a search request. Only shared content (public and church
// visibility) is searchable; private and group items never enter an index.
type Query struct {
	Text  string
	Limit int
}

// Searcher can execute a full-text search over meditations.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MeditationRecord is the data we index for a meditation.
type MeditationRecord struct {
	ID          string `json:"id"`
	AuthorName  string `json:"authorName"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
	SourceType  string `json:"sourceType"`
	Text        string `json:"text"`
	BibleRange  string `json:"bibleRange"`
	DayNumber   int    `json:"dayNumber"`
	CreatedAt   string `json:"createdAt"`
}

// indexable reports whether a meditation belongs in the search index.
func indexable(m store.UnifiedMeditation) bool {
	return m.Visibility == "public" || (m.Visibility == "church" && m.SourceType == "church")
}

func recordFromMeditation(m store.UnifiedMeditation) MeditationRecord {
	fields := []string{m.MySentence, m.MeditationAnswer, m.Gratitude, m.MyPrayer, m.DayReview, m.Content}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			parts = append(parts, strings.TrimSpace(f))
		}
	}
	authorName := m.AuthorName
	if m.IsAnonymous {
		authorName = "익명"
	}
	record := MeditationRecord{
		ID:          m.ID,
		AuthorName:  authorName,
		ContentType: m.ContentType,
		Visibility:  m.Visibility,
		SourceType:  m.SourceType,
		Text:        strings.Join(parts, " "),
		BibleRange:  m.BibleRange,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
	if m.DayNumber != nil {
		record.DayNumber = *m.DayNumber
	}
	return record
}
