package analysis

// RecommendationWarning is the only record type the rule table emits.
const RecommendationWarning = "warning"

// Recommendation is one advisory record.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Suggestion is a per-joint advisory from a single frame.
type Suggestion struct {
	Type        string  `json:"type"`
	Joint       string  `json:"joint"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Thresholds triggers the rule table. Pose and score rules fire below their value, dispersion above it.
type Thresholds struct {
	Stability    float64 `yaml:"stability" json:"stability" validate:"gte=0,lte=100"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
	Accuracy     float64 `yaml:"accuracy" json:"accuracy" validate:"gte=0,lte=100"`
	AverageScore float64 `yaml:"average_score" json:"average_score" validate:"gte=0"`
	Dispersion   float64 `yaml:"dispersion" json:"dispersion" validate:"gte=0"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Stability:    85,
		Consistency:  80,
		Accuracy:     90,
		AverageScore: 7,
		Dispersion:   0.2,
	}
}

var (
	recStability = Recommendation{
		Type:        RecommendationWarning,
		Title:       "Pose stability",
		Description: "Strengthen core training to keep your center of gravity stable. Single-leg standing drills help improve balance.",
	}
	recConsistency = Recommendation{
		Type:        RecommendationWarning,
		Title:       "Movement consistency",
		Description: "Repetition is inconsistent. Add fundamentals practice to build muscle memory.",
	}
	recAccuracy = Recommendation{
		Type:        RecommendationWarning,
		Title:       "Pose accuracy",
		Description: "Your form deviates from the reference posture. Practice against reference form footage.",
	}
	recScore = Recommendation{
		Type:        RecommendationWarning,
		Title:       "Score",
		Description: "Scores are low. Check your basic stance and aiming point.",
	}
	recGrouping = Recommendation{
		Type:        RecommendationWarning,
		Title:       "Group tightness",
		Description: "Arrows are widely spread. Focus on shot-to-shot consistency drills.",
	}
)

// PoseRecommendations evaluates the pose rules independently.
func PoseRecommendations(a SequenceAnalysis, th Thresholds) []Recommendation {
	recs := []Recommendation{}
	if a.Stability < th.Stability {
		recs = append(recs, recStability)
	}
	if a.Consistency < th.Consistency {
		recs = append(recs, recConsistency)
	}
	if a.Accuracy < th.Accuracy {
		recs = append(recs, recAccuracy)
	}
	return recs
}

// TargetRecommendations evaluates the score and grouping rules. A nil grouping never triggers.
func TargetRecommendations(averageScore float64, grouping *GroupingStats, th Thresholds) []Recommendation {
	recs := []Recommendation{}
	if averageScore < th.AverageScore {
		recs = append(recs, recScore)
	}
	if grouping != nil && grouping.Dispersion > th.Dispersion {
		recs = append(recs, recGrouping)
	}
	return recs
}
