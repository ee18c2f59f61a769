package analysis

type PoseFrameResult struct {
	JointScores map[string]float64 `json:"joint_scores"`
	Stability   float64            `json:"stability"`
}

// FrameAnalysis is the single-frame output used by realtime analysis.
type FrameAnalysis struct {
	Scores      PoseFrameResult    `json:"scores"`
	Angles      map[string]float64 `json:"angles"`
	Suggestions []Suggestion       `json:"suggestions"`
}

type Keyframe struct {
	FrameIndex int             `json:"frame_index"`
	Timestamp  float64         `json:"timestamp"`
	Scores     PoseFrameResult `json:"scores"`
}

type SequenceAnalysis struct {
	Stability   float64 `json:"stability"`
	Consistency float64 `json:"consistency"`
	Accuracy    float64 `json:"accuracy"`
}

type PoseAnalysis struct {
	PostureScores   []PoseFrameResult `json:"posture_scores"`
	Keyframes       []Keyframe        `json:"keyframes"`
	Analysis        SequenceAnalysis  `json:"analysis"`
	Recommendations []Recommendation  `json:"recommendations"`
	FrameInterval   int               `json:"frame_interval"`
	FramesSampled   int               `json:"frames_sampled"`
	FramesSkipped   int               `json:"frames_skipped"`
}

type ArrowScore struct {
	Box      Box     `json:"box"`
	Center   Point   `json:"center"`
	Distance float64 `json:"distance"`
	Score    int     `json:"score"`
	Ring     int     `json:"ring"`
}

type TargetInfo struct {
	Type       string  `json:"type"`
	Distance   float64 `json:"distance"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

type TargetAnalysis struct {
	Target          TargetInfo       `json:"target"`
	Arrows          []ArrowScore     `json:"arrows"`
	TotalScore      int              `json:"total_score"`
	AverageScore    float64          `json:"average_score"`
	NoArrowDetected bool             `json:"no_arrow_detected"`
	Grouping        *GroupingStats   `json:"grouping"`
	Recommendations []Recommendation `json:"recommendations"`
}

type QuickAnalysis struct {
	TargetDetected bool `json:"target_detected"`
	ArrowCount     int  `json:"arrow_count"`
}

// PoseSequenceInput is a landmark sequence as delivered by the pose estimator, one set per source frame.
type PoseSequenceInput struct {
	Frames        []LandmarkSet `json:"frames"`
	SourceFPS     float64       `json:"source_fps"`
	FrameRate     int           `json:"frame_rate"`
	SaveKeyframes bool          `json:"save_keyframes"`
}

// TargetInput is one image's detector output plus the declared target.
type TargetInput struct {
	TargetType   string      `json:"target_type"`
	Distance     float64     `json:"distance"`
	DetectArrows bool        `json:"detect_arrows"`
	Detections   []Detection `json:"detections"`
}
