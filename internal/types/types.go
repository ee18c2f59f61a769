package types

import (
	"time"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
)

// Default pose request values applied when the client omits them
const (
	DefaultFrameRate     = 30
	DefaultSaveKeyframes = true
)

// PoseAnalyzeRequest is the body of POST /analyze/pose
type PoseAnalyzeRequest struct {
	SourceFPS     float64                `json:"source_fps" binding:"gte=0"`
	FrameRate     *int                   `json:"frame_rate,omitempty" binding:"omitempty,gt=0,lte=240"`
	SaveKeyframes *bool                  `json:"save_keyframes,omitempty"`
	Frames        []analysis.LandmarkSet `json:"frames" binding:"required"`
}

// Input converts the request to the scoring input, applying defaults
func (r PoseAnalyzeRequest) Input() analysis.PoseSequenceInput {
	in := analysis.PoseSequenceInput{
		Frames:        r.Frames,
		SourceFPS:     r.SourceFPS,
		FrameRate:     DefaultFrameRate,
		SaveKeyframes: DefaultSaveKeyframes,
	}
	if r.FrameRate != nil {
		in.FrameRate = *r.FrameRate
	}
	if r.SaveKeyframes != nil {
		in.SaveKeyframes = *r.SaveKeyframes
	}
	return in
}

// Default target request values applied when the client omits them
const (
	DefaultTargetType   = analysis.TargetStandard
	DefaultDistance     = 18.0
	DefaultDetectArrows = true
)

// TargetAnalyzeRequest is the body of POST /analyze/target
type TargetAnalyzeRequest struct {
	TargetType   string               `json:"target_type,omitempty" binding:"max=64"`
	Distance     *float64             `json:"distance,omitempty" binding:"omitempty,gte=0"`
	DetectArrows *bool                `json:"detect_arrows,omitempty"`
	Detections   []analysis.Detection `json:"detections" binding:"max=1000"`
}

// Input converts the request to the scoring input, applying defaults
func (r TargetAnalyzeRequest) Input() analysis.TargetInput {
	return targetInput(r.TargetType, r.Distance, r.DetectArrows, r.Detections)
}

// TargetImageForm are the form fields sent with POST /analyze/target/image
type TargetImageForm struct {
	TargetType   string   `form:"target_type" binding:"max=64"`
	Distance     *float64 `form:"distance" binding:"omitempty,gte=0"`
	DetectArrows *bool    `form:"detect_arrows"`
}

// Input pairs the form with the detector output, applying defaults
func (f TargetImageForm) Input(detections []analysis.Detection) analysis.TargetInput {
	return targetInput(f.TargetType, f.Distance, f.DetectArrows, detections)
}

func targetInput(targetType string, distance *float64, detectArrows *bool, detections []analysis.Detection) analysis.TargetInput {
	in := analysis.TargetInput{
		TargetType:   DefaultTargetType,
		Distance:     DefaultDistance,
		DetectArrows: DefaultDetectArrows,
		Detections:   detections,
	}
	if targetType != "" {
		in.TargetType = targetType
	}
	if distance != nil {
		in.Distance = *distance
	}
	if detectArrows != nil {
		in.DetectArrows = *detectArrows
	}
	return in
}

// Realtime analysis kinds
const (
	RealtimePose   = "pose"
	RealtimeTarget = "target"
)

// RealtimeForm are the form fields sent with POST /analyze/realtime
type RealtimeForm struct {
	Type string `form:"type" binding:"required"`
}

// TokenRequest is the body of POST /auth/token
type TokenRequest struct {
	ArcherID string `json:"archer_id" binding:"required"`
}

// SessionsQuery are the query parameters of GET /archers/me/sessions
type SessionsQuery struct {
	Kind  string `form:"kind"`
	Limit int    `form:"limit" binding:"gte=0,lte=500"`
}

// StatisticsQuery are the query parameters of GET /archers/me/statistics
type StatisticsQuery struct {
	Period string `form:"period"`
}

// ForgetResponse reports an archer erasure
type ForgetResponse struct {
	ArcherID string `json:"archer_id"`
	Deleted  int64  `json:"deleted"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	Services     map[string]bool        `json:"services"`
	Dependencies map[string]interface{} `json:"dependencies"`
}

// TargetsResponse is the body of GET /targets
type TargetsResponse struct {
	Targets []analysis.TargetDescription `json:"targets"`
}
