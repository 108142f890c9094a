package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const meditationColumns = `
	id, user_id, guest_token, author_name, is_anonymous,
	source_type, source_id, content_type, visibility,
	COALESCE(my_sentence, ''), COALESCE(meditation_answer, ''), COALESCE(gratitude, ''),
	COALESCE(my_prayer, ''), COALESCE(day_review, ''), COALESCE(content, ''),
	day_number, COALESCE(bible_range, ''), qt_date,
	likes_count, replies_count, is_pinned,
	legacy_table, legacy_id, created_at, updated_at`

func scanMeditation(row interface{ Scan(...any) error }) (UnifiedMeditation, error) {
	var m UnifiedMeditation
	err := row.Scan(
		&m.ID, &m.UserID, &m.GuestToken, &m.AuthorName, &m.IsAnonymous,
		&m.SourceType, &m.SourceID, &m.ContentType, &m.Visibility,
		&m.MySentence, &m.MeditationAnswer, &m.Gratitude,
		&m.MyPrayer, &m.DayReview, &m.Content,
		&m.DayNumber, &m.BibleRange, &m.QTDate,
		&m.LikesCount, &m.RepliesCount, &m.IsPinned,
		&m.LegacyTable, &m.LegacyID, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// ListMeditations runs one feed page query. Predicates are supplied by the
// caller; the store only builds the WHERE clause. Private rows are never
// returned to anyone but their author.
func (s *PostgresStore) ListMeditations(ctx context.Context, f MeditationFilter) ([]UnifiedMeditation, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Visibilities) > 0 {
		conds = append(conds, "visibility = ANY("+arg(f.Visibilities)+")")
	}
	if f.SourceType != "" {
		conds = append(conds, "source_type = "+arg(f.SourceType))
	}
	if len(f.SourceIDs) > 0 {
		conds = append(conds, "source_id = ANY("+arg(f.SourceIDs)+")")
	}
	if len(f.UserIDs) > 0 {
		conds = append(conds, "user_id = ANY("+arg(f.UserIDs)+")")
	}
	if len(f.ContentTypes) > 0 {
		conds = append(conds, "content_type = ANY("+arg(f.ContentTypes)+")")
	}
	if f.Before != nil {
		conds = append(conds, "created_at < "+arg(*f.Before))
	}
	if f.ViewerID != "" {
		conds = append(conds, "(visibility <> 'private' OR user_id = "+arg(f.ViewerID)+")")
	} else {
		conds = append(conds, "visibility <> 'private'")
	}

	query := "SELECT " + meditationColumns + " FROM unified_meditations"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meditations: %w", err)
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

func (s *PostgresStore) GetMeditation(ctx context.Context, id string) (UnifiedMeditation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+meditationColumns+" FROM unified_meditations WHERE id = $1", id)
	m, err := scanMeditation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UnifiedMeditation{}, err
		}
		return UnifiedMeditation{}, fmt.Errorf("get meditation %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) InsertMeditation(ctx context.Context, m UnifiedMeditation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unified_meditations (
			id, user_id, guest_token, author_name, is_anonymous,
			source_type, source_id, content_type, visibility,
			my_sentence, meditation_answer, gratitude, my_prayer, day_review, content,
			day_number, bible_range, qt_date, is_pinned,
			legacy_table, legacy_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			COALESCE($22, NOW())
		)
	`,
		m.ID, m.UserID, m.GuestToken, m.AuthorName, m.IsAnonymous,
		m.SourceType, m.SourceID, m.ContentType, m.Visibility,
		m.MySentence, m.MeditationAnswer, m.Gratitude, m.MyPrayer, m.DayReview, m.Content,
		m.DayNumber, m.BibleRange, m.QTDate, m.IsPinned,
		m.LegacyTable, m.LegacyID, nullableTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert meditation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMeditationContent(ctx context.Context, m UnifiedMeditation) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE unified_meditations SET
			my_sentence = $2, meditation_answer = $3, gratitude = $4,
			my_prayer = $5, day_review = $6, content = $7,
			visibility = $8, is_anonymous = $9, updated_at = NOW()
		WHERE id = $1
	`, m.ID, m.MySentence, m.MeditationAnswer, m.Gratitude, m.MyPrayer, m.DayReview, m.Content, m.Visibility, m.IsAnonymous)
	if err != nil {
		return false, fmt.Errorf("update meditation %s: %w", m.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update meditation %s: %w", m.ID, err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetMeditationPinned(ctx context.Context, id string, pinned bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE unified_meditations SET is_pinned = $2, updated_at = NOW() WHERE id = $1
	`, id, pinned)
	if err != nil {
		return false, fmt.Errorf("pin meditation %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pin meditation %s: %w", id, err)
	}
	return affected > 0, nil
}

// nullableTime lets the insert fall back to NOW() for rows created by the
// write path while preserving original timestamps on migrated rows.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// --- replies ---

// InsertReply creates the reply and bumps the parent's replies_count in one
// transaction. The counter update is a SQL-side increment, never a
// read-modify-write from this process.
func (s *PostgresStore) InsertReply(ctx context.Context, r MeditationReply) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO unified_meditation_replies (
			id, meditation_id, user_id, guest_token, author_name,
			content, is_anonymous, mention_user_id, mention_nickname
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.MeditationID, r.UserID, r.GuestToken, r.AuthorName, r.Content, r.IsAnonymous, r.MentionUserID, r.MentionNickname); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE unified_meditations SET replies_count = replies_count + 1 WHERE id = $1
	`, r.MeditationID); err != nil {
		return fmt.Errorf("increment replies_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reply tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteReply(ctx context.Context, replyID, meditationID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reply delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM unified_meditation_replies WHERE id = $1 AND meditation_id = $2
	`, replyID, meditationID)
	if err != nil {
		return false, fmt.Errorf("delete reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reply: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE unified_meditations SET replies_count = GREATEST(replies_count - 1, 0) WHERE id = $1
	`, meditationID); err != nil {
		return false, fmt.Errorf("decrement replies_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reply delete tx: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) GetReply(ctx context.Context, replyID string) (MeditationReply, error) {
	var r MeditationReply
	err := s.db.QueryRowContext(ctx, `
		SELECT id, meditation_id, user_id, guest_token, author_name,
			content, is_anonymous, mention_user_id, mention_nickname, created_at, updated_at
		FROM unified_meditation_replies WHERE id = $1
	`, replyID).Scan(&r.ID, &r.MeditationID, &r.UserID, &r.GuestToken, &r.AuthorName,
		&r.Content, &r.IsAnonymous, &r.MentionUserID, &r.MentionNickname, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MeditationReply{}, err
		}
		return MeditationReply{}, fmt.Errorf("get reply %s: %w", replyID, err)
	}
	return r, nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, meditationID string) ([]MeditationReply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meditation_id, user_id, guest_token, author_name,
			content, is_anonymous, mention_user_id, mention_nickname, created_at, updated_at
		FROM unified_meditation_replies
		WHERE meditation_id = $1
		ORDER BY created_at ASC
	`, meditationID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	var replies []MeditationReply
	for rows.Next() {
		var r MeditationReply
		if err := rows.Scan(&r.ID, &r.MeditationID, &r.UserID, &r.GuestToken, &r.AuthorName,
			&r.Content, &r.IsAnonymous, &r.MentionUserID, &r.MentionNickname, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

// --- likes ---

// ToggleLike flips the viewer's like and adjusts likes_count atomically.
// Returns the state after the toggle.
func (s *PostgresStore) ToggleLike(ctx context.Context, meditationID, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin like tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM meditation_likes WHERE meditation_id = $1 AND user_id = $2
	`, meditationID, userID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	liked := false
	if deleted > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE unified_meditations SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1
		`, meditationID); err != nil {
			return false, fmt.Errorf("decrement likes_count: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO meditation_likes (meditation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (meditation_id, user_id) DO NOTHING
		`, meditationID, userID)
		if err != nil {
			return false, fmt.Errorf("insert like: %w", err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("insert like: %w", err)
		}
		if inserted > 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE unified_meditations SET likes_count = likes_count + 1 WHERE id = $1
			`, meditationID); err != nil {
				return false, fmt.Errorf("increment likes_count: %w", err)
			}
		}
		liked = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit like tx: %w", err)
	}
	return liked, nil
}
