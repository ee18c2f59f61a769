package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/database"
)

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	statsCache := NewStatisticsCache(time.Minute)
	t.Cleanup(func() { statsCache.Close() })

	svc := NewService(database.NewRepository(db), statsCache)
	svc.now = func() time.Time { return now }
	return svc
}

func target(scores ...int) analysis.TargetAnalysis {
	out := analysis.TargetAnalysis{
		Target: analysis.TargetInfo{Type: analysis.TargetStandard, Distance: 18},
		Arrows: []analysis.ArrowScore{},
	}
	for _, s := range scores {
		out.Arrows = append(out.Arrows, analysis.ArrowScore{Score: s, Ring: s})
		out.TotalScore += s
	}
	out.NoArrowDetected = len(scores) == 0
	return out
}

func TestPeriodRange(t *testing.T) {
	wednesday := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	sunday := time.Date(2024, 5, 5, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		period    string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "daily", period: PeriodDaily, now: wednesday, wantStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), wantEnd: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{name: "weekly midweek", period: PeriodWeekly, now: wednesday, wantStart: time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC), wantEnd: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{name: "weekly on sunday", period: PeriodWeekly, now: sunday, wantStart: time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC), wantEnd: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{name: "monthly", period: PeriodMonthly, now: wednesday, wantStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), wantEnd: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "all time", period: PeriodAllTime, now: wednesday, wantStart: time.Time{}, wantEnd: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{name: "unknown", period: "yearly", now: wednesday, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := PeriodRange(tt.period, tt.now)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPeriod))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start %v", start)
			assert.True(t, tt.wantEnd.Equal(end), "end %v", end)
		})
	}
}

func TestService_Statistics(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, now)
	ctx := context.Background()

	_, err := svc.RecordTarget(ctx, "archer", target(10, 9, 0, 5))
	require.NoError(t, err)
	_, err = svc.RecordTarget(ctx, "archer", target(8, 8))
	require.NoError(t, err)
	_, err = svc.RecordTarget(ctx, "other", target(10))
	require.NoError(t, err)
	_, err = svc.RecordPose(ctx, "archer", analysis.PoseAnalysis{Analysis: analysis.SequenceAnalysis{Stability: 80, Consistency: 60, Accuracy: 70}})
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx, "archer", PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, PeriodDaily, stats.Period)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 6, stats.TotalShots)
	assert.Equal(t, 40, stats.TotalScore)
	assert.Equal(t, 24, stats.BestSessionScore)
	assert.InDelta(t, 40.0/6.0, stats.AverageScore, 1e-9)
	assert.InDelta(t, 5.0/6.0, stats.HitRate, 1e-9)
	assert.Equal(t, map[int]int{10: 1, 9: 1, 8: 2, 5: 1, 0: 1}, stats.ScoreDistribution)
	assert.Equal(t, 1, stats.PoseSessions)
	assert.InDelta(t, 80, stats.AverageStability, 1e-9)

	cached, found := svc.cache.Get("archer", PeriodDaily)
	require.True(t, found)
	assert.Equal(t, stats.TotalScore, cached.TotalScore)
	assert.Equal(t, stats.ScoreDistribution, cached.ScoreDistribution)

	_, err = svc.RecordTarget(ctx, "archer", target(10))
	require.NoError(t, err)
	_, found = svc.cache.Get("archer", PeriodDaily)
	assert.False(t, found, "recording invalidates the archer's statistics")

	stats, err = svc.Statistics(ctx, "archer", "")
	require.NoError(t, err)
	assert.Equal(t, PeriodAllTime, stats.Period)
	assert.Equal(t, 3, stats.TotalSessions)

	_, err = svc.Statistics(ctx, "archer", "hourly")
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestStatisticsCache_DropsResultsComputedBeforeInvalidation(t *testing.T) {
	c := NewStatisticsCache(time.Minute)
	defer c.Close()

	generation := c.Generation("archer")
	stale := &TargetStatistics{Period: PeriodDaily, TotalSessions: 1}

	// a session is recorded while the aggregate query is still running
	c.InvalidateArcher("archer")
	assert.False(t, c.Set("archer", generation, stale))
	_, found := c.Get("archer", PeriodDaily)
	assert.False(t, found, "stale statistics must not be cached")

	fresh := &TargetStatistics{Period: PeriodDaily, TotalSessions: 2}
	assert.True(t, c.Set("archer", c.Generation("archer"), fresh))
	cached, found := c.Get("archer", PeriodDaily)
	require.True(t, found)
	assert.Equal(t, 2, cached.TotalSessions)

	assert.True(t, c.Set("other", c.Generation("other"), fresh), "generations are per archer")
}

func TestService_StatisticsAfterForgetAreRecomputed(t *testing.T) {
	svc := newTestService(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.RecordTarget(ctx, "archer", target(10, 10))
	require.NoError(t, err)
	generation := svc.cache.Generation("archer")

	stats, err := svc.Statistics(ctx, "archer", PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalScore)

	_, err = svc.Forget(ctx, "archer")
	require.NoError(t, err)
	assert.False(t, svc.cache.Set("archer", generation, stats), "forget bumps the generation")

	stats, err = svc.Statistics(ctx, "archer", PeriodDaily)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSessions)
}

func TestService_EmptyStatistics(t *testing.T) {
	svc := newTestService(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	stats, err := svc.Statistics(context.Background(), "nobody", PeriodWeekly)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalShots)
	assert.Zero(t, stats.HitRate)
	assert.Zero(t, stats.AverageScore)
	assert.NotNil(t, stats.ScoreDistribution)
}

func TestService_SessionsAndForget(t *testing.T) {
	svc := newTestService(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.RecordTarget(ctx, "archer", target(7))
	require.NoError(t, err)
	_, err = svc.RecordPose(ctx, "archer", analysis.PoseAnalysis{})
	require.NoError(t, err)

	tests := []struct {
		name      string
		kind      string
		wantKind  string
		wantTotal int
		wantErr   error
	}{
		{name: "default is target", kind: "", wantKind: KindTarget, wantTotal: 1},
		{name: "pose", kind: KindPose, wantKind: KindPose, wantTotal: 1},
		{name: "unknown kind", kind: "video", wantErr: ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := svc.Sessions(ctx, "archer", tt.kind, 10)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, list.Kind)
			assert.Equal(t, tt.wantTotal, list.Total)
		})
	}

	_, err = svc.Statistics(ctx, "archer", PeriodMonthly)
	require.NoError(t, err)

	removed, err := svc.Forget(ctx, "archer")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stats, err := svc.Statistics(ctx, "archer", PeriodMonthly)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSessions, "forget drops cached statistics")
}
