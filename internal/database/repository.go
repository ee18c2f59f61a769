package database

import (
	"context"
	"fmt"
	"time"
)

// DefaultListLimit caps session listings when the caller asks for none or too many
const DefaultListLimit = 50

// Repository handles session history storage
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveTargetSession stores a session and its arrows atomically
func (r *Repository) SaveTargetSession(ctx context.Context, session *TargetSession, arrows []ArrowRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO target_sessions (
			id, archer_id, target_type, distance, arrow_count, total_score,
			average_score, no_arrow_detected, dispersion, result, created_at
		) VALUES (
			:id, :archer_id, :target_type, :distance, :arrow_count, :total_score,
			:average_score, :no_arrow_detected, :dispersion, :result, :created_at
		)`, session)
	if err != nil {
		return fmt.Errorf("failed to save target session: %w", err)
	}

	for i := range arrows {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO arrow_records (id, session_id, archer_id, score, ring, distance, center_x, center_y, created_at)
			VALUES (:id, :session_id, :archer_id, :score, :ring, :distance, :center_x, :center_y, :created_at)`, &arrows[i])
		if err != nil {
			return fmt.Errorf("failed to save arrow record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit target session: %w", err)
	}
	return nil
}

// SavePoseSession stores a pose session
func (r *Repository) SavePoseSession(ctx context.Context, session *PoseSession) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO pose_sessions (
			id, archer_id, frames_sampled, frames_skipped, stability, consistency, accuracy, result, created_at
		) VALUES (
			:id, :archer_id, :frames_sampled, :frames_skipped, :stability, :consistency, :accuracy, :result, :created_at
		)`, session)
	if err != nil {
		return fmt.Errorf("failed to save pose session: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// ListTargetSessions returns the archer's most recent target sessions first
func (r *Repository) ListTargetSessions(ctx context.Context, archerID string, limit int) ([]TargetSession, error) {
	sessions := []TargetSession{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT id, archer_id, target_type, distance, arrow_count, total_score,
			average_score, no_arrow_detected, dispersion, result, created_at
		FROM target_sessions
		WHERE archer_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, archerID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list target sessions: %w", err)
	}
	return sessions, nil
}

// ListPoseSessions returns the archer's most recent pose sessions first
func (r *Repository) ListPoseSessions(ctx context.Context, archerID string, limit int) ([]PoseSession, error) {
	sessions := []PoseSession{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT id, archer_id, frames_sampled, frames_skipped, stability, consistency, accuracy, result, created_at
		FROM pose_sessions
		WHERE archer_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, archerID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list pose sessions: %w", err)
	}
	return sessions, nil
}

// ArrowsForSession returns a session's arrows in insertion order
func (r *Repository) ArrowsForSession(ctx context.Context, sessionID string) ([]ArrowRecord, error) {
	arrows := []ArrowRecord{}
	err := r.db.SelectContext(ctx, &arrows, `
		SELECT id, session_id, archer_id, score, ring, distance, center_x, center_y, created_at
		FROM arrow_records
		WHERE session_id = ?
		ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list arrows: %w", err)
	}
	return arrows, nil
}

// TargetAggregate sums the archer's target sessions created in [from, to)
func (r *Repository) TargetAggregate(ctx context.Context, archerID string, from, to time.Time) (TargetAggregate, error) {
	var agg TargetAggregate
	from, to = from.UTC(), to.UTC()
	err := r.db.GetContext(ctx, &agg, `
		SELECT
			COUNT(*) AS sessions,
			COALESCE(SUM(arrow_count), 0) AS shots,
			COALESCE(SUM(total_score), 0) AS score,
			COALESCE(MAX(total_score), 0) AS best_score,
			(SELECT COUNT(*) FROM arrow_records
				WHERE archer_id = ? AND created_at >= ? AND created_at < ? AND score > 0) AS hits
		FROM target_sessions
		WHERE archer_id = ? AND created_at >= ? AND created_at < ?`,
		archerID, from, to, archerID, from, to)
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate target sessions: %w", err)
	}
	return agg, nil
}

// ScoreDistribution counts the archer's arrows per score in [from, to)
func (r *Repository) ScoreDistribution(ctx context.Context, archerID string, from, to time.Time) (map[int]int, error) {
	rows := []struct {
		Score int `db:"score"`
		Count int `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT score, COUNT(*) AS count
		FROM arrow_records
		WHERE archer_id = ? AND created_at >= ? AND created_at < ?
		GROUP BY score`, archerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query score distribution: %w", err)
	}

	dist := make(map[int]int, len(rows))
	for _, row := range rows {
		dist[row.Score] = row.Count
	}
	return dist, nil
}

// PoseAggregate averages the archer's pose sessions created in [from, to)
func (r *Repository) PoseAggregate(ctx context.Context, archerID string, from, to time.Time) (PoseAggregate, error) {
	var agg PoseAggregate
	err := r.db.GetContext(ctx, &agg, `
		SELECT
			COUNT(*) AS sessions,
			COALESCE(AVG(stability), 0) AS stability,
			COALESCE(AVG(consistency), 0) AS consistency,
			COALESCE(AVG(accuracy), 0) AS accuracy
		FROM pose_sessions
		WHERE archer_id = ? AND created_at >= ? AND created_at < ?`, archerID, from.UTC(), to.UTC())
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate pose sessions: %w", err)
	}
	return agg, nil
}

// DeleteArcher removes every session and arrow of the archer and returns the number of sessions removed
func (r *Repository) DeleteArcher(ctx context.Context, archerID string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM arrow_records WHERE archer_id = ?`, archerID); err != nil {
		return 0, fmt.Errorf("failed to delete arrow records: %w", err)
	}

	var removed int64
	for _, query := range []string{
		`DELETE FROM target_sessions WHERE archer_id = ?`,
		`DELETE FROM pose_sessions WHERE archer_id = ?`,
	} {
		res, err := tx.ExecContext(ctx, query, archerID)
		if err != nil {
			return 0, fmt.Errorf("failed to delete sessions: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
		}
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archer deletion: %w", err)
	}
	return removed, nil
}
