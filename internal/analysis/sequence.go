package analysis

import "math"

// FrameInterval is the sampling step floor(sourceFPS / frameRate), at least 1.
func FrameInterval(sourceFPS float64, frameRate int) int {
	if frameRate <= 0 || sourceFPS <= 0 || math.IsNaN(sourceFPS) || math.IsInf(sourceFPS, 0) {
		return 1
	}
	interval := int(math.Floor(sourceFPS / float64(frameRate)))
	if interval < 1 {
		return 1
	}
	return interval
}

// AggregateSequence reduces per-frame results into stability, consistency and accuracy.
// Consistency uses the population standard deviation of frame stabilities and is not clamped.
func AggregateSequence(frames []PoseFrameResult, consistencyScale float64) (SequenceAnalysis, error) {
	if len(frames) == 0 {
		return SequenceAnalysis{}, newScoringError(ReasonInsufficientData, "no analyzable frames")
	}

	stabilities := make([]float64, len(frames))
	jointMeans := make([]float64, len(frames))
	for i, f := range frames {
		stabilities[i] = f.Stability

		scores := make([]float64, 0, len(f.JointScores))
		for _, joint := range sortedKeys(f.JointScores) {
			scores = append(scores, f.JointScores[joint])
		}
		jointMeans[i] = mean(scores)
	}

	return SequenceAnalysis{
		Stability:   mean(stabilities),
		Consistency: 100 - consistencyScale*popStdDev(stabilities),
		Accuracy:    mean(jointMeans),
	}, nil
}
