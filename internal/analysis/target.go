package analysis

// Detector class ids.
const (
	ClassTarget = 0
	ClassArrow  = 1
)

// Box is [x1, y1, x2, y2] in one image's coordinate space.
type Box [4]float64

// Center of the box.
func (b Box) Center() Point {
	return Point{X: (b[0] + b[2]) / 2, Y: (b[1] + b[3]) / 2}
}

func (b Box) Width() float64 {
	return b[2] - b[0]
}

func (b Box) Height() float64 {
	return b[3] - b[1]
}

// Radius is half the shorter side, the target's scoring radius.
func (b Box) Radius() float64 {
	r := b.Width()
	if h := b.Height(); h < r {
		r = h
	}
	return r / 2
}

// Scale maps the box back into a source image resized by factor.
func (b Box) Scale(factor float64) Box {
	return Box{b[0] * factor, b[1] * factor, b[2] * factor, b[3] * factor}
}

// Detection is one object detector output row.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

// FilterDetections drops detections below minConfidence, keeping order.
func FilterDetections(detections []Detection, minConfidence float64) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}

// SelectTarget picks the highest-confidence target box; the first wins ties.
func SelectTarget(detections []Detection) (Detection, error) {
	best := -1
	for i, d := range detections {
		if d.ClassID != ClassTarget {
			continue
		}
		if best < 0 || d.Confidence > detections[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return Detection{}, ErrNoTargetDetected
	}
	return detections[best], nil
}

// Arrows returns the arrow-class detections in order.
func Arrows(detections []Detection) []Detection {
	out := []Detection{}
	for _, d := range detections {
		if d.ClassID == ClassArrow {
			out = append(out, d)
		}
	}
	return out
}

// NormalizedDistance is the center distance between arrow and target in target radii.
// ok is false for a degenerate target with zero radius.
func NormalizedDistance(arrow, target Box) (float64, bool) {
	radius := target.Radius()
	if radius <= 0 {
		return 0, false
	}
	return Distance(arrow.Center(), target.Center()) / radius, true
}

// ScoreArrow scores one arrow box against the target box.
func ScoreArrow(arrow, target Box, cfg TargetConfig) ArrowScore {
	result := ArrowScore{Box: arrow, Center: arrow.Center()}

	d, ok := NormalizedDistance(arrow, target)
	if !ok {
		return result
	}
	result.Distance = d
	result.Score = cfg.ScoreDistance(d)
	result.Ring = result.Score
	return result
}

// ScoreArrows scores every arrow in order.
func ScoreArrows(arrows []Detection, target Box, cfg TargetConfig) []ArrowScore {
	out := make([]ArrowScore, len(arrows))
	for i, a := range arrows {
		out[i] = ScoreArrow(a.Box, target, cfg)
	}
	return out
}

// SummarizeScores totals arrow scores. With no arrows it returns zeros and ErrNoArrowDetected.
func SummarizeScores(scores []ArrowScore) (total int, average float64, err error) {
	if len(scores) == 0 {
		return 0, 0, ErrNoArrowDetected
	}
	for _, s := range scores {
		total += s.Score
	}
	return total, float64(total) / float64(len(scores)), nil
}

// NormalizedCenters expresses arrow centers as offsets from the target center in target radii.
func NormalizedCenters(scores []ArrowScore, target Box) []Point {
	radius := target.Radius()
	if radius <= 0 {
		return nil
	}
	c := target.Center()
	points := make([]Point, len(scores))
	for i, s := range scores {
		points[i] = Point{X: (s.Center.X - c.X) / radius, Y: (s.Center.Y - c.Y) / radius}
	}
	return points
}

// QuickScan counts target and arrow detections without scoring.
func QuickScan(detections []Detection) QuickAnalysis {
	q := QuickAnalysis{}
	for _, d := range detections {
		switch d.ClassID {
		case ClassTarget:
			q.TargetDetected = true
		case ClassArrow:
			q.ArrowCount++
		}
	}
	return q
}
