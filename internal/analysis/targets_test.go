package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTargetConfigs(t *testing.T) {
	configs := DefaultTargetConfigs()
	require.Contains(t, configs, TargetStandard)
	require.Contains(t, configs, TargetSixRing)

	standard := configs[TargetStandard]
	assert.Len(t, standard.Rings, 10)
	assert.InDelta(t, 0.1, standard.Rings[10], 1e-12)
	assert.InDelta(t, 1.0, standard.Rings[1], 1e-12)

	sixRing := configs[TargetSixRing]
	assert.Len(t, sixRing.Rings, 6)
	assert.InDelta(t, 1.0, sixRing.Rings[5], 1e-12)

	for name, cfg := range configs {
		assert.NoError(t, cfg.Validate(), name)
	}
}

func TestTargetConfig_ScoreDistance(t *testing.T) {
	cfg := DefaultTargetConfigs()[TargetStandard]

	tests := []struct {
		name     string
		distance float64
		expected int
	}{
		{name: "center", distance: 0, expected: 10},
		{name: "ten ring edge", distance: 0.1, expected: 10},
		{name: "nine ring", distance: 0.15, expected: 9},
		{name: "five ring", distance: 0.55, expected: 5},
		{name: "one ring edge", distance: 1.0, expected: 1},
		{name: "miss", distance: 1.01, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cfg.ScoreDistance(tt.distance))
		})
	}
}

func TestTargetConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		rings map[int]float64
		valid bool
	}{
		{name: "ordered", rings: map[int]float64{10: 0.1, 5: 0.5}, valid: true},
		{name: "empty", rings: map[int]float64{}, valid: false},
		{name: "zero ring id", rings: map[int]float64{10: 0.1, 0: 0.5}, valid: false},
		{name: "negative threshold", rings: map[int]float64{10: -0.1}, valid: false},
		{name: "inverted", rings: map[int]float64{10: 0.5, 5: 0.1}, valid: false},
		{name: "duplicate threshold", rings: map[int]float64{10: 0.5, 9: 0.5}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TargetConfig{Rings: tt.rings}.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTargetConfig)
			}
		})
	}
}

func TestTargetRegistry(t *testing.T) {
	source := map[string]TargetConfig{
		"indoor": {Rings: map[int]float64{10: 0.1, 5: 0.5}},
		"field":  {Rings: map[int]float64{6: 0.2, 5: 0.4}},
	}
	registry, err := NewTargetRegistry(source)
	require.NoError(t, err)

	assert.Equal(t, []string{"field", "indoor"}, registry.Types())

	source["indoor"].Rings[10] = 0.9
	cfg, err := registry.Lookup("indoor")
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Rings[10])

	_, err = registry.Lookup("olympic")
	assert.ErrorIs(t, err, ErrUnsupportedTargetType)

	desc := registry.Describe()
	require.Len(t, desc, 2)
	assert.Equal(t, "field", desc[0].Type)
	assert.Equal(t, []RingThreshold{{Ring: 6, Threshold: 0.2}, {Ring: 5, Threshold: 0.4}}, desc[0].Rings)

	_, err = NewTargetRegistry(map[string]TargetConfig{"bad": {Rings: map[int]float64{10: 0.5, 5: 0.1}}})
	assert.ErrorIs(t, err, ErrInvalidTargetConfig)

	_, err = NewTargetRegistry(nil)
	assert.Error(t, err)
}

func TestTargetStore(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file falls back to built-ins", func(t *testing.T) {
		store := NewTargetStore(filepath.Join(dir, "missing.json"))
		configs, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultTargetConfigs(), configs)
	})

	t.Run("empty path falls back to built-ins", func(t *testing.T) {
		configs, err := NewTargetStore("").Load()
		require.NoError(t, err)
		assert.Len(t, configs, 2)
	})

	t.Run("reads string ring keys", func(t *testing.T) {
		path := filepath.Join(dir, "targets.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"indoor": {"rings": {"10": 0.1, "5": 0.5}}}`), 0644))

		registry, err := NewTargetStore(path).Registry()
		require.NoError(t, err)
		cfg, err := registry.Lookup("indoor")
		require.NoError(t, err)
		assert.Equal(t, map[int]float64{10: 0.1, 5: 0.5}, cfg.Rings)
	})

	t.Run("save then load", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "targets.json")
		store := NewTargetStore(path)
		require.NoError(t, store.Save(DefaultTargetConfigs()))

		configs, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultTargetConfigs(), configs)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"indoor": `), 0644))
		_, err := NewTargetStore(path).Load()
		assert.Error(t, err)
	})
}
