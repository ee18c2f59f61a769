package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeGrouping(t *testing.T) {
	tests := []struct {
		name     string
		points   []Point
		expected *GroupingStats
	}{
		{name: "no arrows", points: nil, expected: nil},
		{name: "one arrow", points: []Point{{X: 3, Y: 4}}, expected: nil},
		{
			name:     "two arrows",
			points:   []Point{{X: 0, Y: 0}, {X: 10, Y: 0}},
			expected: &GroupingStats{Diameter: 10, Dispersion: 5, Center: Point{X: 5, Y: 0}},
		},
		{
			name:     "stacked arrows",
			points:   []Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}},
			expected: &GroupingStats{Diameter: 0, Dispersion: 0, Center: Point{X: 1, Y: 1}},
		},
		{
			name:     "square",
			points:   []Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}},
			expected: &GroupingStats{Diameter: 2.8284271247461903, Dispersion: 1.4142135623730951, Center: Point{X: 1, Y: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeGrouping(tt.points)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.expected.Diameter, got.Diameter, 1e-9)
			assert.InDelta(t, tt.expected.Dispersion, got.Dispersion, 1e-9)
			assert.InDelta(t, tt.expected.Center.X, got.Center.X, 1e-9)
			assert.InDelta(t, tt.expected.Center.Y, got.Center.Y, 1e-9)
		})
	}
}
