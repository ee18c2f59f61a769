package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Built-in target type names.
const (
	TargetStandard = "standard"
	TargetSixRing  = "six_ring"
)

// TargetConfig maps ring id to the largest normalized distance that still scores it.
type TargetConfig struct {
	Rings map[int]float64 `json:"rings"`
}

// RingThreshold is one row of a ring table.
type RingThreshold struct {
	Ring      int     `json:"ring"`
	Threshold float64 `json:"threshold"`
}

// Ordered returns the ring table from highest ring to lowest.
func (c TargetConfig) Ordered() []RingThreshold {
	rings := make([]RingThreshold, 0, len(c.Rings))
	for ring, th := range c.Rings {
		rings = append(rings, RingThreshold{Ring: ring, Threshold: th})
	}
	sort.Slice(rings, func(i, j int) bool { return rings[i].Ring > rings[j].Ring })
	return rings
}

// ScoreDistance returns the first ring, scanning from the highest, whose threshold covers d. 0 is a miss.
func (c TargetConfig) ScoreDistance(d float64) int {
	for _, r := range c.Ordered() {
		if r.Threshold >= d {
			return r.Ring
		}
	}
	return 0
}

// Validate checks ids and thresholds are positive and that lower rings reach further out.
func (c TargetConfig) Validate() error {
	if len(c.Rings) == 0 {
		return newScoringError(ReasonInvalidTargetConfig, "no rings")
	}
	ordered := c.Ordered()
	for i, r := range ordered {
		if r.Ring <= 0 {
			return newScoringError(ReasonInvalidTargetConfig, "ring id %d must be positive", r.Ring)
		}
		if r.Threshold <= 0 {
			return newScoringError(ReasonInvalidTargetConfig, "ring %d threshold %v must be positive", r.Ring, r.Threshold)
		}
		if i > 0 && r.Threshold <= ordered[i-1].Threshold {
			return newScoringError(ReasonInvalidTargetConfig,
				"ring %d threshold %v must exceed ring %d threshold %v",
				r.Ring, r.Threshold, ordered[i-1].Ring, ordered[i-1].Threshold)
		}
	}
	return nil
}

func (c TargetConfig) clone() TargetConfig {
	rings := make(map[int]float64, len(c.Rings))
	for k, v := range c.Rings {
		rings[k] = v
	}
	return TargetConfig{Rings: rings}
}

// DefaultTargetConfigs returns the built-in ring tables.
func DefaultTargetConfigs() map[string]TargetConfig {
	standard := make(map[int]float64, 10)
	for r := 10; r >= 1; r-- {
		standard[r] = float64(11-r) / 10
	}
	sixRing := make(map[int]float64, 6)
	for r := 10; r >= 5; r-- {
		sixRing[r] = float64(11-r) / 6
	}
	return map[string]TargetConfig{
		TargetStandard: {Rings: standard},
		TargetSixRing:  {Rings: sixRing},
	}
}

// TargetRegistry is the read-only set of target configurations, safe for concurrent readers.
type TargetRegistry struct {
	configs map[string]TargetConfig
	types   []string
}

// NewTargetRegistry validates and copies configs.
func NewTargetRegistry(configs map[string]TargetConfig) (*TargetRegistry, error) {
	if len(configs) == 0 {
		return nil, newScoringError(ReasonInvalidTargetConfig, "no target types configured")
	}
	r := &TargetRegistry{configs: make(map[string]TargetConfig, len(configs))}
	for name, cfg := range configs {
		if name == "" {
			return nil, newScoringError(ReasonInvalidTargetConfig, "empty target type name")
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("target type %s: %w", name, err)
		}
		r.configs[name] = cfg.clone()
		r.types = append(r.types, name)
	}
	sort.Strings(r.types)
	return r, nil
}

// Lookup fails with ErrUnsupportedTargetType for unknown names.
func (r *TargetRegistry) Lookup(targetType string) (TargetConfig, error) {
	cfg, ok := r.configs[targetType]
	if !ok {
		return TargetConfig{}, newScoringError(ReasonUnsupportedTargetType, "%q", targetType)
	}
	return cfg, nil
}

// Types lists configured target types in name order.
func (r *TargetRegistry) Types() []string {
	return append([]string(nil), r.types...)
}

// TargetDescription is the public view of one target type.
type TargetDescription struct {
	Type  string          `json:"type"`
	Rings []RingThreshold `json:"rings"`
}

// Describe lists every target type with its ordered rings.
func (r *TargetRegistry) Describe() []TargetDescription {
	out := make([]TargetDescription, 0, len(r.types))
	for _, name := range r.types {
		out = append(out, TargetDescription{Type: name, Rings: r.configs[name].Ordered()})
	}
	return out
}

// TargetStore reads and writes the target configuration JSON file.
type TargetStore struct {
	path string
}

func NewTargetStore(path string) *TargetStore {
	return &TargetStore{path: path}
}

func (s *TargetStore) Load() (map[string]TargetConfig, error) {
	if s.path == "" {
		return DefaultTargetConfigs(), nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return DefaultTargetConfigs(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read target config: %w", err)
	}

	var configs map[string]TargetConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode target config: %w", err)
	}
	return configs, nil
}

// Registry loads and validates the file in one step.
func (s *TargetStore) Registry() (*TargetRegistry, error) {
	configs, err := s.Load()
	if err != nil {
		return nil, err
	}
	return NewTargetRegistry(configs)
}

// Save writes configs, creating the parent directory.
func (s *TargetStore) Save(configs map[string]TargetConfig) error {
	if s.path == "" {
		return fmt.Errorf("target store has no path")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create target config directory: %w", err)
	}

	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode target config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write target config: %w", err)
	}
	return nil
}
