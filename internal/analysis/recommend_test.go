package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func titles(recs []Recommendation) []string {
	out := []string{}
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func TestPoseRecommendations(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		analysis SequenceAnalysis
		expected []string
	}{
		{
			name:     "clean sequence",
			analysis: SequenceAnalysis{Stability: 95, Consistency: 95, Accuracy: 95},
			expected: []string{},
		},
		{
			name:     "boundaries do not trigger",
			analysis: SequenceAnalysis{Stability: 85, Consistency: 80, Accuracy: 90},
			expected: []string{},
		},
		{
			name:     "everything low",
			analysis: SequenceAnalysis{Stability: 50, Consistency: -20, Accuracy: 40},
			expected: []string{"Pose stability", "Movement consistency", "Pose accuracy"},
		},
		{
			name:     "only consistency",
			analysis: SequenceAnalysis{Stability: 90, Consistency: 79.99, Accuracy: 90},
			expected: []string{"Movement consistency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := PoseRecommendations(tt.analysis, th)
			assert.NotNil(t, recs)
			assert.Equal(t, tt.expected, titles(recs))
			for _, r := range recs {
				assert.Equal(t, RecommendationWarning, r.Type)
				assert.NotEmpty(t, r.Description)
			}
		})
	}
}

func TestTargetRecommendations(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		average  float64
		grouping *GroupingStats
		expected []string
	}{
		{name: "just below score threshold", average: 6.9, expected: []string{"Score"}},
		{name: "score threshold is exclusive", average: 7.0, expected: []string{}},
		{name: "no arrows still warns on score", average: 0, expected: []string{"Score"}},
		{
			name:     "tight group",
			average:  9,
			grouping: &GroupingStats{Dispersion: 0.2},
			expected: []string{},
		},
		{
			name:     "loose group",
			average:  9,
			grouping: &GroupingStats{Dispersion: 0.21},
			expected: []string{"Group tightness"},
		},
		{
			name:     "both",
			average:  3,
			grouping: &GroupingStats{Dispersion: 0.6},
			expected: []string{"Score", "Group tightness"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, titles(TargetRecommendations(tt.average, tt.grouping, th)))
		})
	}
}

func TestTargetRecommendations_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.Dispersion = 0.5
	th.AverageScore = 5

	assert.Empty(t, TargetRecommendations(6, &GroupingStats{Dispersion: 0.4}, th))
}
