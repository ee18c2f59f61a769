package analysis

import "runtime"

// ScoringParams are the tunable constants of the pipelines. They are fixed once an Analyzer is built.
type ScoringParams struct {
	ConsistencyScale    float64    `yaml:"consistency_scale" json:"consistency_scale" validate:"gt=0"`
	SuggestionThreshold float64    `yaml:"suggestion_threshold" json:"suggestion_threshold" validate:"gte=0,lte=100"`
	MaxKeyframes        int        `yaml:"max_keyframes" json:"max_keyframes" validate:"gte=0"`
	MinConfidence       float64    `yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	JointSet            string     `yaml:"joint_set" json:"joint_set" validate:"oneof=upper full"`
	Workers             int        `yaml:"workers" json:"workers" validate:"gte=1"`
	Thresholds          Thresholds `yaml:"thresholds" json:"thresholds"`
}

func DefaultScoringParams() ScoringParams {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return ScoringParams{
		ConsistencyScale:    10,
		SuggestionThreshold: 80,
		MaxKeyframes:        5,
		MinConfidence:       0,
		JointSet:            JointSetUpper,
		Workers:             workers,
		Thresholds:          DefaultThresholds(),
	}
}
