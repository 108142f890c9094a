package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"dailybread/api/internal/store"
	"dailybread/api/internal/util"
)

const batchSize = 50

// Legacy table names double as migration identity keys in unified_meditations.
const (
	tableQTPosts       = "church_qt_posts"
	tableGuestComments = "guest_comments"
)

// spotCheckDays are the plan days sampled for the post-run count comparison.
var spotCheckDays = []int{1, 31, 90, 180, 270, 365}

// legacyStore is the slice of the data store the reconciler needs.
type legacyStore interface {
	ListLegacyQTPostIDs(ctx context.Context) ([]string, error)
	ListLegacyGuestCommentIDs(ctx context.Context) ([]string, error)
	ListMigratedLegacyIDs(ctx context.Context, legacyTable string) ([]string, error)
	CountDuplicateLegacyKeys(ctx context.Context) (int, error)
	GetLegacyQTPosts(ctx context.Context, ids []string) ([]store.LegacyQTPost, error)
	GetLegacyGuestComments(ctx context.Context, ids []string) ([]store.LegacyGuestComment, error)
	ListAllMeditations(ctx context.Context) ([]store.UnifiedMeditation, error)
	CountLegacyQTPostsByDay(ctx context.Context, dayNumber int) (int, error)
	CountMigratedByDay(ctx context.Context, legacyTable string, dayNumber int) (int, error)
	InsertMeditation(ctx context.Context, m store.UnifiedMeditation) error
}

// BackupSink stores one pre-migration snapshot per run.
type BackupSink interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// Service consolidates the legacy tables into unified_meditations. Runs are
// idempotent: the (legacy_table, legacy_id) unique key is the identity and
// only missing rows are inserted.
type Service struct {
	store  legacyStore
	backup BackupSink
}

func New(dataStore legacyStore, backup BackupSink) *Service {
	return &Service{store: dataStore, backup: backup}
}

// TableReport describes one legacy table's run outcome.
type TableReport struct {
	LegacyTable   string   `json:"legacyTable"`
	MissingBefore int      `json:"missingBefore"`
	Inserted      int      `json:"inserted"`
	Skipped       int      `json:"skipped,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	MissingAfter  int      `json:"missingAfter"`
}

// DayCheck is one per-day spot check: legacy count versus migrated count.
type DayCheck struct {
	Day      int  `json:"day"`
	Legacy   int  `json:"legacy"`
	Migrated int  `json:"migrated"`
	Match    bool `json:"match"`
}

// Report is the full run summary returned to the operator.
type Report struct {
	DryRun        bool          `json:"dryRun"`
	BackupObject  string        `json:"backupObject,omitempty"`
	DuplicateKeys int           `json:"duplicateKeys"`
	Tables        []TableReport `json:"tables"`
	DayChecks     []DayCheck    `json:"dayChecks"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// Run executes one reconciliation pass. With dryRun set it computes the
// missing sets and duplicate count but writes nothing, not even the backup.
// A failed backup aborts the run before any mutation.
func (s *Service) Run(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun, StartedAt: time.Now().UTC()}

	qtMissing, err := s.missingIDs(ctx, tableQTPosts)
	if err != nil {
		return Report{}, err
	}
	guestMissing, err := s.missingIDs(ctx, tableGuestComments)
	if err != nil {
		return Report{}, err
	}

	// Duplicates are a data-quality warning, not a hard stop.
	duplicates, err := s.store.CountDuplicateLegacyKeys(ctx)
	if err != nil {
		return Report{}, err
	}
	if duplicates > 0 {
		log.Printf("reconcile: %d duplicate legacy keys in unified store, proceeding", duplicates)
	}
	report.DuplicateKeys = duplicates

	if !dryRun && (len(qtMissing) > 0 || len(guestMissing) > 0) {
		object, err := s.backupAll(ctx)
		if err != nil {
			// Without the snapshot there is no recovery path; stop here.
			return Report{}, fmt.Errorf("backup before migration: %w", err)
		}
		report.BackupObject = object
	}

	qtReport := TableReport{LegacyTable: tableQTPosts, MissingBefore: len(qtMissing)}
	if !dryRun {
		s.migrateQTPosts(ctx, qtMissing, &qtReport)
	}
	guestReport := TableReport{LegacyTable: tableGuestComments, MissingBefore: len(guestMissing)}
	if !dryRun {
		s.migrateGuestComments(ctx, guestMissing, &guestReport)
	}

	qtAfter, err := s.missingIDs(ctx, tableQTPosts)
	if err != nil {
		return Report{}, err
	}
	guestAfter, err := s.missingIDs(ctx, tableGuestComments)
	if err != nil {
		return Report{}, err
	}
	qtReport.MissingAfter = len(qtAfter)
	guestReport.MissingAfter = len(guestAfter)
	report.Tables = []TableReport{qtReport, guestReport}

	checks, err := s.spotCheck(ctx)
	if err != nil {
		return Report{}, err
	}
	report.DayChecks = checks

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// missingIDs computes legacy ids not yet present under the table's identity
// key in the unified store.
func (s *Service) missingIDs(ctx context.Context, legacyTable string) ([]string, error) {
	var sourceIDs []string
	var err error
	switch legacyTable {
	case tableQTPosts:
		sourceIDs, err = s.store.ListLegacyQTPostIDs(ctx)
	case tableGuestComments:
		sourceIDs, err = s.store.ListLegacyGuestCommentIDs(ctx)
	default:
		return nil, fmt.Errorf("unknown legacy table %q", legacyTable)
	}
	if err != nil {
		return nil, err
	}

	migrated, err := s.store.ListMigratedLegacyIDs(ctx, legacyTable)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(migrated))
	for _, id := range migrated {
		seen[id] = struct{}{}
	}

	var missing []string
	for _, id := range sourceIDs {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *Service) backupAll(ctx context.Context) (string, error) {
	meditations, err := s.store.ListAllMeditations(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meditations, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("unified-meditations-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	return s.backup.Store(ctx, name, data)
}

// migrateQTPosts inserts missing church QT posts in batches. A failing batch
// is logged and reported but does not block the remaining batches.
func (s *Service) migrateQTPosts(ctx context.Context, missing []string, report *TableReport) {
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		posts, err := s.store.GetLegacyQTPosts(ctx, batch)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("fetch qt posts %s..%s: %v", batch[0], batch[len(batch)-1], err))
			log.Printf("reconcile: fetch qt posts batch starting %s: %v", batch[0], err)
			continue
		}
		for _, p := range posts {
			if err := s.store.InsertMeditation(ctx, meditationFromQTPost(p)); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("insert qt post %s: %v", p.ID, err))
				log.Printf("reconcile: insert qt post %s: %v", p.ID, err)
				continue
			}
			report.Inserted++
		}
	}
}

func (s *Service) migrateGuestComments(ctx context.Context, missing []string, report *TableReport) {
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		comments, err := s.store.GetLegacyGuestComments(ctx, batch)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("fetch guest comments %s..%s: %v", batch[0], batch[len(batch)-1], err))
			log.Printf("reconcile: fetch guest comments batch starting %s: %v", batch[0], err)
			continue
		}
		for _, c := range comments {
			// Guest comments live on a church timeline; a row without a
			// church has nowhere to land and stays behind.
			if c.ChurchID == nil || *c.ChurchID == "" {
				report.Skipped++
				log.Printf("reconcile: guest comment %s has no church, skipping", c.ID)
				continue
			}
			if err := s.store.InsertMeditation(ctx, meditationFromGuestComment(c)); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("insert guest comment %s: %v", c.ID, err))
				log.Printf("reconcile: insert guest comment %s: %v", c.ID, err)
				continue
			}
			report.Inserted++
		}
	}
}

// meditationFromQTPost maps one legacy church QT post onto the unified shape.
// Posts without a church land on the public timeline.
func meditationFromQTPost(p store.LegacyQTPost) store.UnifiedMeditation {
	legacyTable := tableQTPosts
	legacyID := p.ID
	m := store.UnifiedMeditation{
		ID:               util.NewID("med"),
		UserID:           p.UserID,
		AuthorName:       p.AuthorName,
		IsAnonymous:      p.IsAnonymous,
		SourceType:       "public",
		ContentType:      "qt",
		Visibility:       "public",
		MySentence:       p.MySentence,
		MeditationAnswer: p.MeditationAnswer,
		Gratitude:        p.Gratitude,
		MyPrayer:         p.MyPrayer,
		DayReview:        p.DayReview,
		DayNumber:        p.DayNumber,
		BibleRange:       p.BibleRange,
		QTDate:           p.QTDate,
		LegacyTable:      &legacyTable,
		LegacyID:         &legacyID,
		CreatedAt:        p.CreatedAt,
	}
	if p.ChurchID != nil && *p.ChurchID != "" {
		m.SourceType = "church"
		m.SourceID = p.ChurchID
		m.Visibility = "church"
	}
	return m
}

// meditationFromGuestComment maps one legacy guest comment onto its church
// timeline. Callers filter out rows without a church first.
func meditationFromGuestComment(c store.LegacyGuestComment) store.UnifiedMeditation {
	legacyTable := tableGuestComments
	legacyID := c.ID
	authorName := c.AuthorName
	if authorName == "" {
		authorName = "게스트"
	}
	return store.UnifiedMeditation{
		ID:          util.NewID("med"),
		GuestToken:  c.GuestToken,
		AuthorName:  authorName,
		IsAnonymous: c.IsAnonymous,
		SourceType:  "church",
		SourceID:    c.ChurchID,
		ContentType: "free",
		Visibility:  "church",
		Content:     c.Content,
		DayNumber:   c.DayNumber,
		BibleRange:  c.BibleRange,
		LegacyTable: &legacyTable,
		LegacyID:    &legacyID,
		CreatedAt:   c.CreatedAt,
	}
}

func (s *Service) spotCheck(ctx context.Context) ([]DayCheck, error) {
	checks := make([]DayCheck, 0, len(spotCheckDays))
	for _, day := range spotCheckDays {
		legacy, err := s.store.CountLegacyQTPostsByDay(ctx, day)
		if err != nil {
			return nil, err
		}
		migrated, err := s.store.CountMigratedByDay(ctx, tableQTPosts, day)
		if err != nil {
			return nil, err
		}
		checks = append(checks, DayCheck{Day: day, Legacy: legacy, Migrated: migrated, Match: legacy == migrated})
	}
	return checks, nil
}
