package analysis

// GroupingStats describes how tightly arrows cluster.
type GroupingStats struct {
	Diameter   float64 `json:"diameter"`
	Dispersion float64 `json:"dispersion"`
	Center     Point   `json:"center"`
}

// AnalyzeGrouping returns nil for fewer than two points.
// Diameter is the largest pairwise distance, dispersion the mean distance to the centroid.
func AnalyzeGrouping(points []Point) *GroupingStats {
	if len(points) < 2 {
		return nil
	}

	var diameter float64
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			diameter = maxFloat(diameter, Distance(points[i], points[j]))
		}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	center := Point{X: mean(xs), Y: mean(ys)}

	spread := make([]float64, len(points))
	for i, p := range points {
		spread[i] = Distance(p, center)
	}

	return &GroupingStats{
		Diameter:   diameter,
		Dispersion: mean(spread),
		Center:     center,
	}
}
