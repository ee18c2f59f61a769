package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
)

func newTestRepository(t *testing.T) (*Repository, *DB) {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), db
}

func targetResult(scores ...int) analysis.TargetAnalysis {
	result := analysis.TargetAnalysis{
		Target: analysis.TargetInfo{Type: analysis.TargetStandard, Distance: 18, Box: analysis.Box{0, 0, 200, 200}, Confidence: 0.9},
		Arrows: []analysis.ArrowScore{},
	}
	for i, s := range scores {
		result.Arrows = append(result.Arrows, analysis.ArrowScore{
			Center:   analysis.Point{X: float64(100 + i), Y: 100},
			Distance: float64(11-s) / 10,
			Score:    s,
			Ring:     s,
		})
		result.TotalScore += s
	}
	if len(scores) > 0 {
		result.AverageScore = float64(result.TotalScore) / float64(len(scores))
	} else {
		result.NoArrowDetected = true
	}
	if len(scores) > 1 {
		result.Grouping = &analysis.GroupingStats{Diameter: 0.1, Dispersion: 0.05}
	}
	return result
}

func saveTarget(t *testing.T, repo *Repository, archer string, at time.Time, scores ...int) *TargetSession {
	t.Helper()
	session, arrows, err := NewTargetSession(archer, targetResult(scores...), at)
	require.NoError(t, err)
	require.NoError(t, repo.SaveTargetSession(context.Background(), session, arrows))
	return session
}

func savePose(t *testing.T, repo *Repository, archer string, at time.Time, stability float64) {
	t.Helper()
	session, err := NewPoseSession(archer, analysis.PoseAnalysis{
		Analysis:      analysis.SequenceAnalysis{Stability: stability, Consistency: 90, Accuracy: stability},
		FramesSampled: 4,
		FramesSkipped: 1,
	}, at)
	require.NoError(t, err)
	require.NoError(t, repo.SavePoseSession(context.Background(), session))
}

func TestNewDB_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	db, err := NewDB(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err)
	assert.NoError(t, db.Ping(context.Background()))
	assert.Contains(t, db.GetPoolStats(), "max_open_connections")
}

func TestRepository_TargetSessions(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := saveTarget(t, repo, "archer-1", base, 10, 9, 0)
	second := saveTarget(t, repo, "archer-1", base.Add(time.Hour))
	saveTarget(t, repo, "archer-2", base, 7)

	sessions, err := repo.ListTargetSessions(ctx, "archer-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID, "newest first")
	assert.True(t, sessions[0].NoArrowDetected)
	assert.False(t, sessions[0].Dispersion.Valid)

	assert.Equal(t, first.ID, sessions[1].ID)
	assert.Equal(t, 19, sessions[1].TotalScore)
	assert.Equal(t, 3, sessions[1].ArrowCount)
	assert.True(t, sessions[1].Dispersion.Valid)
	assert.InDelta(t, 0.05, sessions[1].Dispersion.Float64, 1e-9)
	assert.True(t, sessions[1].CreatedAt.Equal(base))

	decoded, err := sessions[1].TargetAnalysis()
	require.NoError(t, err)
	assert.Equal(t, 19, decoded.TotalScore)
	require.Len(t, decoded.Arrows, 3)

	arrows, err := repo.ArrowsForSession(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, arrows, 3)
	assert.Equal(t, []int{10, 9, 0}, []int{arrows[0].Score, arrows[1].Score, arrows[2].Score})

	limited, err := repo.ListTargetSessions(ctx, "archer-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListTargetSessions(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRepository_Aggregates(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	saveTarget(t, repo, "a", base, 10, 9, 0)
	saveTarget(t, repo, "a", base.Add(2*time.Hour), 8, 8)
	saveTarget(t, repo, "a", base.AddDate(0, 0, -10), 1)
	saveTarget(t, repo, "b", base, 10)

	from := base.Add(-time.Hour)
	to := base.Add(24 * time.Hour)

	agg, err := repo.TargetAggregate(ctx, "a", from, to)
	require.NoError(t, err)
	assert.Equal(t, TargetAggregate{Sessions: 2, Shots: 5, Score: 35, BestScore: 19, Hits: 4}, agg)

	dist, err := repo.ScoreDistribution(ctx, "a", from, to)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{10: 1, 9: 1, 8: 2, 0: 1}, dist)

	all, err := repo.TargetAggregate(ctx, "a", time.Time{}, to)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Sessions)

	empty, err := repo.TargetAggregate(ctx, "nobody", from, to)
	require.NoError(t, err)
	assert.Equal(t, TargetAggregate{}, empty)

	savePose(t, repo, "a", base, 80)
	savePose(t, repo, "a", base.Add(time.Minute), 90)
	pose, err := repo.PoseAggregate(ctx, "a", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, pose.Sessions)
	assert.InDelta(t, 85, pose.Stability, 1e-9)
	assert.InDelta(t, 90, pose.Consistency, 1e-9)

	noPose, err := repo.PoseAggregate(ctx, "b", from, to)
	require.NoError(t, err)
	assert.Equal(t, PoseAggregate{}, noPose)
}

func TestRepository_PoseSessions(t *testing.T) {
	repo, _ := newTestRepository(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	savePose(t, repo, "a", base, 70)
	savePose(t, repo, "a", base.Add(time.Minute), 95)

	sessions, err := repo.ListPoseSessions(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.InDelta(t, 95, sessions[0].Stability, 1e-9)
	assert.Equal(t, 4, sessions[0].FramesSampled)

	decoded, err := sessions[0].PoseAnalysis()
	require.NoError(t, err)
	assert.InDelta(t, 95, decoded.Analysis.Stability, 1e-9)
}

func TestRepository_DeleteArcher(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	saveTarget(t, repo, "a", base, 10, 9)
	savePose(t, repo, "a", base, 80)
	saveTarget(t, repo, "b", base, 5)

	removed, err := repo.DeleteArcher(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	var arrows int
	require.NoError(t, db.GetContext(ctx, &arrows, `SELECT COUNT(*) FROM arrow_records WHERE archer_id = ?`, "a"))
	assert.Zero(t, arrows)

	remaining, err := repo.ListTargetSessions(ctx, "b", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	removed, err = repo.DeleteArcher(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
