package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TargetSession is one recorded target analysis
type TargetSession struct {
	ID              string          `json:"id" db:"id"`
	ArcherID        string          `json:"-" db:"archer_id"`
	TargetType      string          `json:"target_type" db:"target_type"`
	Distance        float64         `json:"distance" db:"distance"`
	ArrowCount      int             `json:"arrow_count" db:"arrow_count"`
	TotalScore      int             `json:"total_score" db:"total_score"`
	AverageScore    float64         `json:"average_score" db:"average_score"`
	NoArrowDetected bool            `json:"no_arrow_detected" db:"no_arrow_detected"`
	Dispersion      sql.NullFloat64 `json:"-" db:"dispersion"`
	Result          string          `json:"-" db:"result"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// ArrowRecord is one scored arrow of a target session
type ArrowRecord struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	ArcherID  string    `json:"-" db:"archer_id"`
	Score     int       `json:"score" db:"score"`
	Ring      int       `json:"ring" db:"ring"`
	Distance  float64   `json:"distance" db:"distance"`
	CenterX   float64   `json:"center_x" db:"center_x"`
	CenterY   float64   `json:"center_y" db:"center_y"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PoseSession is one recorded pose sequence analysis
type PoseSession struct {
	ID            string    `json:"id" db:"id"`
	ArcherID      string    `json:"-" db:"archer_id"`
	FramesSampled int       `json:"frames_sampled" db:"frames_sampled"`
	FramesSkipped int       `json:"frames_skipped" db:"frames_skipped"`
	Stability     float64   `json:"stability" db:"stability"`
	Consistency   float64   `json:"consistency" db:"consistency"`
	Accuracy      float64   `json:"accuracy" db:"accuracy"`
	Result        string    `json:"-" db:"result"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TargetAggregate summarises target sessions over a time range
type TargetAggregate struct {
	Sessions  int `db:"sessions"`
	Shots     int `db:"shots"`
	Score     int `db:"score"`
	BestScore int `db:"best_score"`
	Hits      int `db:"hits"`
}

// PoseAggregate summarises pose sessions over a time range
type PoseAggregate struct {
	Sessions    int     `db:"sessions"`
	Stability   float64 `db:"stability"`
	Consistency float64 `db:"consistency"`
	Accuracy    float64 `db:"accuracy"`
}

// NewTargetSession converts a target analysis into a session and its arrow records
func NewTargetSession(archerID string, result analysis.TargetAnalysis, at time.Time) (*TargetSession, []ArrowRecord, error) {
	blob, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal target analysis: %w", err)
	}

	at = at.UTC()
	session := &TargetSession{
		ID:              uuid.New().String(),
		ArcherID:        archerID,
		TargetType:      result.Target.Type,
		Distance:        result.Target.Distance,
		ArrowCount:      len(result.Arrows),
		TotalScore:      result.TotalScore,
		AverageScore:    result.AverageScore,
		NoArrowDetected: result.NoArrowDetected,
		Result:          string(blob),
		CreatedAt:       at,
	}
	if result.Grouping != nil {
		session.Dispersion = sql.NullFloat64{Float64: result.Grouping.Dispersion, Valid: true}
	}

	arrows := make([]ArrowRecord, len(result.Arrows))
	for i, a := range result.Arrows {
		arrows[i] = ArrowRecord{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			ArcherID:  archerID,
			Score:     a.Score,
			Ring:      a.Ring,
			Distance:  a.Distance,
			CenterX:   a.Center.X,
			CenterY:   a.Center.Y,
			CreatedAt: at,
		}
	}

	return session, arrows, nil
}

// NewPoseSession converts a pose analysis into a session
func NewPoseSession(archerID string, result analysis.PoseAnalysis, at time.Time) (*PoseSession, error) {
	blob, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pose analysis: %w", err)
	}

	return &PoseSession{
		ID:            uuid.New().String(),
		ArcherID:      archerID,
		FramesSampled: result.FramesSampled,
		FramesSkipped: result.FramesSkipped,
		Stability:     result.Analysis.Stability,
		Consistency:   result.Analysis.Consistency,
		Accuracy:      result.Analysis.Accuracy,
		Result:        string(blob),
		CreatedAt:     at.UTC(),
	}, nil
}

// TargetAnalysis decodes the stored analysis
func (s *TargetSession) TargetAnalysis() (analysis.TargetAnalysis, error) {
	var out analysis.TargetAnalysis
	if err := json.Unmarshal([]byte(s.Result), &out); err != nil {
		return out, fmt.Errorf("failed to decode target session %s: %w", s.ID, err)
	}
	return out, nil
}

// PoseAnalysis decodes the stored analysis
func (s *PoseSession) PoseAnalysis() (analysis.PoseAnalysis, error) {
	var out analysis.PoseAnalysis
	if err := json.Unmarshal([]byte(s.Result), &out); err != nil {
		return out, fmt.Errorf("failed to decode pose session %s: %w", s.ID, err)
	}
	return out, nil
}
