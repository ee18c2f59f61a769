package analysis

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Analyzer runs both pipelines over read-only parameters and target configurations.
type Analyzer struct {
	params  ScoringParams
	targets *TargetRegistry
	joints  []JointSpec
}

// NewAnalyzer resolves the joint set and takes ownership of params.
func NewAnalyzer(params ScoringParams, targets *TargetRegistry) (*Analyzer, error) {
	if targets == nil {
		return nil, fmt.Errorf("target registry is required")
	}
	joints, err := JointSet(params.JointSet)
	if err != nil {
		return nil, err
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	return &Analyzer{params: params, targets: targets, joints: joints}, nil
}

func (a *Analyzer) Targets() *TargetRegistry {
	return a.targets
}

func (a *Analyzer) TargetTypes() []string {
	return a.targets.Types()
}

// AnalyzeFrame scores a single landmark set and lists the joints that need work.
func (a *Analyzer) AnalyzeFrame(set LandmarkSet) (FrameAnalysis, error) {
	result, angles, err := ScorePose(set, a.joints)
	if err != nil {
		return FrameAnalysis{}, err
	}
	return FrameAnalysis{
		Scores:      result,
		Angles:      angles,
		Suggestions: FrameSuggestions(result, a.params.SuggestionThreshold),
	}, nil
}

type frameSlot struct {
	result PoseFrameResult
	err    error
}

// AnalyzePoseSequence samples every interval-th frame, scores samples in parallel and aggregates them in frame order.
// Frames without a detection are skipped; malformed landmark sets fail the whole sequence.
func (a *Analyzer) AnalyzePoseSequence(in PoseSequenceInput) (PoseAnalysis, error) {
	interval := FrameInterval(in.SourceFPS, in.FrameRate)

	sampled := make([]int, 0, len(in.Frames)/interval+1)
	for i := 0; i < len(in.Frames); i += interval {
		sampled = append(sampled, i)
	}

	slots := make([]frameSlot, len(sampled))
	var g errgroup.Group
	g.SetLimit(a.params.Workers)
	for n, idx := range sampled {
		n, idx := n, idx
		g.Go(func() error {
			res, _, err := ScorePose(in.Frames[idx], a.joints)
			slots[n] = frameSlot{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := PoseAnalysis{
		PostureScores:   []PoseFrameResult{},
		Keyframes:       []Keyframe{},
		Recommendations: []Recommendation{},
		FrameInterval:   interval,
		FramesSampled:   len(sampled),
	}

	for n, slot := range slots {
		if slot.err != nil {
			if errors.Is(slot.err, ErrNoDetection) {
				out.FramesSkipped++
				continue
			}
			return PoseAnalysis{}, fmt.Errorf("frame %d: %w", sampled[n], slot.err)
		}
		out.PostureScores = append(out.PostureScores, slot.result)

		if in.SaveKeyframes && len(out.Keyframes) < a.params.MaxKeyframes {
			var ts float64
			if in.SourceFPS > 0 {
				ts = float64(sampled[n]) / in.SourceFPS
			}
			out.Keyframes = append(out.Keyframes, Keyframe{
				FrameIndex: sampled[n],
				Timestamp:  ts,
				Scores:     slot.result,
			})
		}
	}

	summary, err := AggregateSequence(out.PostureScores, a.params.ConsistencyScale)
	if err != nil {
		return PoseAnalysis{}, err
	}
	out.Analysis = summary
	out.Recommendations = PoseRecommendations(summary, a.params.Thresholds)
	return out, nil
}

// AnalyzeTarget scores every arrow against the declared target type.
// Zero arrows is a result, not a failure: totals are 0 and NoArrowDetected is set.
func (a *Analyzer) AnalyzeTarget(in TargetInput) (TargetAnalysis, error) {
	targetType := in.TargetType
	if targetType == "" {
		targetType = TargetStandard
	}
	cfg, err := a.targets.Lookup(targetType)
	if err != nil {
		return TargetAnalysis{}, err
	}

	detections := FilterDetections(in.Detections, a.params.MinConfidence)
	target, err := SelectTarget(detections)
	if err != nil {
		return TargetAnalysis{}, err
	}

	out := TargetAnalysis{
		Target: TargetInfo{
			Type:       targetType,
			Distance:   in.Distance,
			Box:        target.Box,
			Confidence: target.Confidence,
		},
		Arrows: []ArrowScore{},
	}

	if in.DetectArrows {
		out.Arrows = ScoreArrows(Arrows(detections), target.Box, cfg)
	}

	total, avg, err := SummarizeScores(out.Arrows)
	switch {
	case errors.Is(err, ErrNoArrowDetected):
		out.NoArrowDetected = true
	case err != nil:
		return TargetAnalysis{}, err
	}
	out.TotalScore = total
	out.AverageScore = avg

	out.Grouping = AnalyzeGrouping(NormalizedCenters(out.Arrows, target.Box))
	out.Recommendations = TargetRecommendations(out.AverageScore, out.Grouping, a.params.Thresholds)
	return out, nil
}

// QuickTarget reports whether a target is visible and how many arrows were detected.
func (a *Analyzer) QuickTarget(detections []Detection) QuickAnalysis {
	return QuickScan(FilterDetections(detections, a.params.MinConfidence))
}
