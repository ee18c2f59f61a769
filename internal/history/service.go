package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Statistics periods
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAllTime = "all_time"
)

// Session kinds
const (
	KindTarget = "target"
	KindPose   = "pose"
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidKind   = errors.New("invalid session kind")
)

// Periods lists the supported statistics periods
func Periods() []string {
	return []string{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}
}

// TargetStatistics summarises an archer's sessions over a period
type TargetStatistics struct {
	Period            string      `json:"period"`
	StartDate         time.Time   `json:"start_date"`
	EndDate           time.Time   `json:"end_date"`
	TotalSessions     int         `json:"total_sessions"`
	TotalShots        int         `json:"total_shots"`
	TotalScore        int         `json:"total_score"`
	AverageScore      float64     `json:"average_score"`
	BestSessionScore  int         `json:"best_session_score"`
	HitRate           float64     `json:"hit_rate"`
	ScoreDistribution map[int]int `json:"score_distribution"`

	PoseSessions       int     `json:"pose_sessions"`
	AverageStability   float64 `json:"average_stability"`
	AverageConsistency float64 `json:"average_consistency"`
	AverageAccuracy    float64 `json:"average_accuracy"`
}

// SessionList is a page of recorded sessions of one kind
type SessionList struct {
	Kind     string      `json:"kind"`
	Sessions interface{} `json:"sessions"`
	Total    int         `json:"total"`
}

// Service records analyses and answers history queries
type Service struct {
	repo  *database.Repository
	cache *StatisticsCache
	now   func() time.Time
}

// NewService creates a new history service
func NewService(repo *database.Repository, cache *StatisticsCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// RecordTarget stores a target analysis for the archer
func (s *Service) RecordTarget(ctx context.Context, archerID string, result analysis.TargetAnalysis) (*database.TargetSession, error) {
	session, arrows, err := database.NewTargetSession(archerID, result, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveTargetSession(ctx, session, arrows); err != nil {
		return nil, err
	}
	s.cache.InvalidateArcher(archerID)

	slog.Info("Target session recorded",
		"session_id", session.ID,
		"arrows", session.ArrowCount,
		"total_score", session.TotalScore,
	)
	return session, nil
}

// RecordPose stores a pose analysis for the archer
func (s *Service) RecordPose(ctx context.Context, archerID string, result analysis.PoseAnalysis) (*database.PoseSession, error) {
	session, err := database.NewPoseSession(archerID, result, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.SavePoseSession(ctx, session); err != nil {
		return nil, err
	}
	s.cache.InvalidateArcher(archerID)

	slog.Info("Pose session recorded",
		"session_id", session.ID,
		"frames_sampled", session.FramesSampled,
	)
	return session, nil
}

// Sessions lists the archer's most recent sessions of the given kind
func (s *Service) Sessions(ctx context.Context, archerID, kind string, limit int) (*SessionList, error) {
	switch kind {
	case "", KindTarget:
		sessions, err := s.repo.ListTargetSessions(ctx, archerID, limit)
		if err != nil {
			return nil, err
		}
		return &SessionList{Kind: KindTarget, Sessions: sessions, Total: len(sessions)}, nil
	case KindPose:
		sessions, err := s.repo.ListPoseSessions(ctx, archerID, limit)
		if err != nil {
			return nil, err
		}
		return &SessionList{Kind: KindPose, Sessions: sessions, Total: len(sessions)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
}

// PeriodRange returns the half-open UTC range [start, end) of period containing now
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodDaily:
		return today, today.AddDate(0, 0, 1), nil
	case PeriodWeekly:
		// weeks start on Monday
		start := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		return start, start.AddDate(0, 0, 7), nil
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	case PeriodAllTime:
		return time.Time{}, today.AddDate(0, 0, 1), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}
}

// Statistics computes the archer's statistics for the period
func (s *Service) Statistics(ctx context.Context, archerID, period string) (*TargetStatistics, error) {
	if period == "" {
		period = PeriodAllTime
	}
	start, end, err := PeriodRange(period, s.now())
	if err != nil {
		return nil, err
	}

	if cached, found := s.cache.Get(archerID, period); found {
		return cached, nil
	}
	generation := s.cache.Generation(archerID)

	target, err := s.repo.TargetAggregate(ctx, archerID, start, end)
	if err != nil {
		return nil, err
	}
	dist, err := s.repo.ScoreDistribution(ctx, archerID, start, end)
	if err != nil {
		return nil, err
	}
	pose, err := s.repo.PoseAggregate(ctx, archerID, start, end)
	if err != nil {
		return nil, err
	}

	stats := &TargetStatistics{
		Period:             period,
		StartDate:          start,
		EndDate:            end,
		TotalSessions:      target.Sessions,
		TotalShots:         target.Shots,
		TotalScore:         target.Score,
		BestSessionScore:   target.BestScore,
		ScoreDistribution:  dist,
		PoseSessions:       pose.Sessions,
		AverageStability:   pose.Stability,
		AverageConsistency: pose.Consistency,
		AverageAccuracy:    pose.Accuracy,
	}
	if target.Shots > 0 {
		stats.AverageScore = float64(target.Score) / float64(target.Shots)
		stats.HitRate = float64(target.Hits) / float64(target.Shots)
	}

	s.cache.Set(archerID, generation, stats)
	return stats, nil
}

// Forget erases every recorded session of the archer
func (s *Service) Forget(ctx context.Context, archerID string) (int64, error) {
	removed, err := s.repo.DeleteArcher(ctx, archerID)
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateArcher(archerID)

	slog.Info("Archer history erased", "sessions_removed", removed)
	return removed, nil
}

// CacheStats returns statistics cache stats
func (s *Service) CacheStats() map[string]interface{} {
	return s.cache.Stats()
}
