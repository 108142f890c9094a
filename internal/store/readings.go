package store

import (
	"context"
	"fmt"
)

// InsertReadingCheck marks a day read. ON CONFLICT DO NOTHING keeps the
// unique key intact under a concurrent double-toggle. Returns whether a row
// was actually created.
func (s *PostgresStore) InsertReadingCheck(ctx context.Context, c ReadingCheck) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO unified_reading_checks (user_id, source_type, source_id, day_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, source_type, source_id, day_number) DO NOTHING
	`, c.UserID, c.SourceType, c.SourceID, c.DayNumber)
	if err != nil {
		return false, fmt.Errorf("insert reading check: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reading check: %w", err)
	}
	return affected > 0, nil
}

// DeleteReadingCheck marks a day unread. Returns whether a row existed.
func (s *PostgresStore) DeleteReadingCheck(ctx context.Context, userID, sourceType, sourceID string, dayNumber int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM unified_reading_checks
		WHERE user_id = $1 AND source_type = $2 AND source_id = $3 AND day_number = $4
	`, userID, sourceType, sourceID, dayNumber)
	if err != nil {
		return false, fmt.Errorf("delete reading check: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reading check: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListReadingChecks(ctx context.Context, userID, sourceType, sourceID string) ([]ReadingCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, source_type, source_id, day_number, checked_at
		FROM unified_reading_checks
		WHERE user_id = $1 AND source_type = $2 AND source_id = $3
		ORDER BY day_number ASC
	`, userID, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list reading checks: %w", err)
	}
	defer rows.Close()

	var checks []ReadingCheck
	for rows.Next() {
		var c ReadingCheck
		if err := rows.Scan(&c.UserID, &c.SourceType, &c.SourceID, &c.DayNumber, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan reading check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// ListGroupReadings returns a user's checks across all their groups in one
// query, keyed by group in the returned rows.
func (s *PostgresStore) ListGroupReadings(ctx context.Context, userID string, groupIDs []string) ([]ReadingCheck, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, source_type, source_id, day_number, checked_at
		FROM unified_reading_checks
		WHERE user_id = $1 AND source_type = 'group' AND source_id = ANY($2)
		ORDER BY source_id, day_number ASC
	`, userID, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("list group readings: %w", err)
	}
	defer rows.Close()

	var checks []ReadingCheck
	for rows.Next() {
		var c ReadingCheck
		if err := rows.Scan(&c.UserID, &c.SourceType, &c.SourceID, &c.DayNumber, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan group reading: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
