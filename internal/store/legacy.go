package store

import (
	"context"
	"fmt"
)

// Reconciler-facing queries over the legacy tables and the migration
// identity keys already present in unified_meditations.

func (s *PostgresStore) ListLegacyQTPostIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM church_qt_posts ORDER BY id`)
}

func (s *PostgresStore) ListLegacyGuestCommentIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM guest_comments ORDER BY id`)
}

// ListMigratedLegacyIDs returns legacy ids already consolidated for one
// legacy table.
func (s *PostgresStore) ListMigratedLegacyIDs(ctx context.Context, legacyTable string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT legacy_id FROM unified_meditations
		WHERE legacy_table = $1 AND legacy_id IS NOT NULL
	`, legacyTable)
	if err != nil {
		return nil, fmt.Errorf("list migrated legacy ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan legacy id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountDuplicateLegacyKeys counts (legacy_table, legacy_id) pairs that appear
// more than once. Any non-zero value is a data-quality warning.
func (s *PostgresStore) CountDuplicateLegacyKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT legacy_table, legacy_id
			FROM unified_meditations
			WHERE legacy_table IS NOT NULL AND legacy_id IS NOT NULL
			GROUP BY legacy_table, legacy_id
			HAVING COUNT(*) > 1
		) dup
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count duplicate legacy keys: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetLegacyQTPosts(ctx context.Context, ids []string) ([]LegacyQTPost, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(author_name, ''), church_id,
			COALESCE(my_sentence, ''), COALESCE(meditation_answer, ''), COALESCE(gratitude, ''),
			COALESCE(my_prayer, ''), COALESCE(day_review, ''),
			day_number, COALESCE(bible_range, ''), qt_date, is_anonymous, created_at
		FROM church_qt_posts WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get legacy qt posts: %w", err)
	}
	defer rows.Close()

	var posts []LegacyQTPost
	for rows.Next() {
		var p LegacyQTPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.AuthorName, &p.ChurchID,
			&p.MySentence, &p.MeditationAnswer, &p.Gratitude,
			&p.MyPrayer, &p.DayReview,
			&p.DayNumber, &p.BibleRange, &p.QTDate, &p.IsAnonymous, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan legacy qt post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStore) GetLegacyGuestComments(ctx context.Context, ids []string) ([]LegacyGuestComment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guest_token, COALESCE(author_name, ''), church_id,
			COALESCE(content, ''), day_number, COALESCE(bible_range, ''), is_anonymous, created_at
		FROM guest_comments WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get legacy guest comments: %w", err)
	}
	defer rows.Close()

	var comments []LegacyGuestComment
	for rows.Next() {
		var c LegacyGuestComment
		if err := rows.Scan(&c.ID, &c.GuestToken, &c.AuthorName, &c.ChurchID,
			&c.Content, &c.DayNumber, &c.BibleRange, &c.IsAnonymous, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan legacy guest comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// ListAllMeditations streams the full unified store for the pre-migration
// backup.
func (s *PostgresStore) ListAllMeditations(ctx context.Context) ([]UnifiedMeditation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+meditationColumns+" FROM unified_meditations ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list all meditations: %w", err)
	}
	defer rows.Close()

	var meditations []UnifiedMeditation
	for rows.Next() {
		m, err := scanMeditation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meditation: %w", err)
		}
		meditations = append(meditations, m)
	}
	return meditations, rows.Err()
}

// CountLegacyQTPostsByDay and CountMigratedByDay back the reconciler's
// per-day spot checks.
func (s *PostgresStore) CountLegacyQTPostsByDay(ctx context.Context, dayNumber int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM church_qt_posts WHERE day_number = $1
	`, dayNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count legacy qt posts for day %d: %w", dayNumber, err)
	}
	return count, nil
}

func (s *PostgresStore) CountMigratedByDay(ctx context.Context, legacyTable string, dayNumber int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM unified_meditations
		WHERE legacy_table = $1 AND day_number = $2
	`, legacyTable, dayNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count migrated rows for day %d: %w", dayNumber, err)
	}
	return count, nil
}

func (s *PostgresStore) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
