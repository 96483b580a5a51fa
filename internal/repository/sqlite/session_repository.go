package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"privacyblur/internal/model"
	"privacyblur/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Flush upserts the session row and its per-category counters in one transaction.
func (r *SessionRepository) Flush(ctx context.Context, s model.SessionStats) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ended sql.NullTime
	if !s.EndedAt.IsZero() {
		ended = sql.NullTime{Time: s.EndedAt.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			id, stream, started_at, ended_at, duration_seconds,
			frames_processed, frames_skipped, regions_blurred, text_matches, detector_errors,
			ocr_failures, ocr_timeouts, ocr_dropped, ocr_abandoned, flush_failures, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			duration_seconds = excluded.duration_seconds,
			frames_processed = excluded.frames_processed,
			frames_skipped = excluded.frames_skipped,
			regions_blurred = excluded.regions_blurred,
			text_matches = excluded.text_matches,
			detector_errors = excluded.detector_errors,
			ocr_failures = excluded.ocr_failures,
			ocr_timeouts = excluded.ocr_timeouts,
			ocr_dropped = excluded.ocr_dropped,
			ocr_abandoned = excluded.ocr_abandoned,
			flush_failures = excluded.flush_failures,
			updated_at = CURRENT_TIMESTAMP
	`, s.SessionID, s.Stream, s.StartedAt.UTC(), ended, s.Duration().Seconds(),
		s.FramesProcessed, s.FramesSkipped, s.RegionsBlurred, s.TextMatches, s.DetectorErrors,
		s.OCRFailures, s.OCRTimeouts, s.OCRDropped, s.OCRAbandoned, s.FlushFailures)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_categories (session_id, category, detected, blurred)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, category) DO UPDATE SET
			detected = excluded.detected,
			blurred = excluded.blurred
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, cat := range model.Categories {
		counts, ok := s.Categories[cat]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, s.SessionID, cat.String(), counts.Detected, counts.Blurred); err != nil {
			return fmt.Errorf("failed to upsert %s counters: %w", cat, err)
		}
	}

	return tx.Commit()
}

const sessionColumns = `id, stream, started_at, ended_at,
	frames_processed, frames_skipped, regions_blurred, text_matches, detector_errors,
	ocr_failures, ocr_timeouts, ocr_dropped, ocr_abandoned, flush_failures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.SessionStats, error) {
	var (
		s       model.SessionStats
		started time.Time
		ended   sql.NullTime
	)
	err := row.Scan(&s.SessionID, &s.Stream, &started, &ended,
		&s.FramesProcessed, &s.FramesSkipped, &s.RegionsBlurred, &s.TextMatches, &s.DetectorErrors,
		&s.OCRFailures, &s.OCRTimeouts, &s.OCRDropped, &s.OCRAbandoned, &s.FlushFailures)
	if err != nil {
		return s, err
	}
	s.StartedAt = started
	if ended.Valid {
		s.EndedAt = ended.Time
	}
	s.Categories = make(map[model.Category]model.CategoryCounts)
	return s, nil
}

// GetByID retrieves one session with its category counters.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (model.SessionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("%w: %s", repository.ErrSessionNotFound, id)
	}
	if err != nil {
		return s, fmt.Errorf("failed to query session: %w", err)
	}

	sessions := []*model.SessionStats{&s}
	if err := r.loadCategories(ctx, sessions); err != nil {
		return s, err
	}
	return s, nil
}

// List returns the most recent sessions, newest first. An empty stream
// matches every stream; limit <= 0 means 50.
func (r *SessionRepository) List(ctx context.Context, stream string, limit int) ([]model.SessionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if stream != "" {
		query += ` WHERE stream = ?`
		args = append(args, stream)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []model.SessionStats
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	rows.Close()

	ptrs := make([]*model.SessionStats, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.loadCategories(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SessionRepository) loadCategories(ctx context.Context, sessions []*model.SessionStats) error {
	for _, s := range sessions {
		rows, err := r.db.Conn().QueryContext(ctx,
			`SELECT category, detected, blurred FROM session_categories WHERE session_id = ?`, s.SessionID)
		if err != nil {
			return fmt.Errorf("failed to query session categories: %w", err)
		}
		for rows.Next() {
			var (
				name   string
				counts model.CategoryCounts
			)
			if err := rows.Scan(&name, &counts.Detected, &counts.Blurred); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan session category: %w", err)
			}
			cat, err := model.ParseCategory(name)
			if err != nil {
				continue
			}
			s.Categories[cat] = counts
		}
		rows.Close()
	}
	return nil
}
