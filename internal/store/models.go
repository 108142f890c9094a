package store

import "time"

type Profile struct {
	ID           string
	Email        string
	PasswordHash string
	Nickname     string
	ChurchID     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Church struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Group struct {
	ID        string
	Name      string
	ChurchID  *string
	CreatedAt time.Time
}

// UnifiedMeditation is the consolidated content record. Rows created by the
// user-facing write path and rows migrated from the legacy tables share this
// superset shape; origin-specific fields are nullable.
type UnifiedMeditation struct {
	ID          string
	UserID      *string
	GuestToken  *string
	AuthorName  string
	IsAnonymous bool

	SourceType  string // group | church | public
	SourceID    *string
	ContentType string // qt | free | memo
	Visibility  string // private | group | church | public

	// qt fields
	MySentence       string
	MeditationAnswer string
	Gratitude        string
	MyPrayer         string
	DayReview        string
	// free / memo
	Content string

	DayNumber  *int
	BibleRange string
	QTDate     *time.Time

	LikesCount   int
	RepliesCount int
	IsPinned     bool

	// Migration identity key. The pair is unique whenever both are non-null.
	LegacyTable *string
	LegacyID    *string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

type MeditationReply struct {
	ID              string
	MeditationID    string
	UserID          *string
	GuestToken      *string
	AuthorName      string
	Content         string
	IsAnonymous     bool
	MentionUserID   *string
	MentionNickname *string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// ReadingCheck marks one plan day completed under one ownership context.
// Absence of a row means unread; there is no "false" row.
type ReadingCheck struct {
	UserID     string
	SourceType string // personal | group | church
	SourceID   string
	DayNumber  int
	CheckedAt  time.Time
}

// MeditationFilter describes one feed page query. The app layer decides the
// tab predicates; the store only translates them to SQL.
type MeditationFilter struct {
	Visibilities []string
	SourceType   string
	SourceIDs    []string
	UserIDs      []string
	ContentTypes []string
	ViewerID     string // private rows belonging to other users are excluded
	Before       *time.Time
	Limit        int
}

type LegacyQTPost struct {
	ID               string
	UserID           *string
	AuthorName       string
	ChurchID         *string
	MySentence       string
	MeditationAnswer string
	Gratitude        string
	MyPrayer         string
	DayReview        string
	DayNumber        *int
	BibleRange       string
	QTDate           *time.Time
	IsAnonymous      bool
	CreatedAt        time.Time
}

type LegacyGuestComment struct {
	ID          string
	GuestToken  *string
	AuthorName  string
	ChurchID    *string
	Content     string
	DayNumber   *int
	BibleRange  string
	IsAnonymous bool
	CreatedAt   time.Time
}
