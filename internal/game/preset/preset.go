// Package preset loads named attack profiles from YAML content files.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

// ErrUnknownPreset is returned when a preset ID is not registered.
var ErrUnknownPreset = errors.New("preset: unknown preset")

// Preset is a named set of calculator fields.
//
// Precondition: ID and Name must be non-empty after loading.
type Preset struct {
	ID                 string `yaml:"id" json:"id"`
	Name               string `yaml:"name" json:"name"`
	Description        string `yaml:"description" json:"description,omitempty"`
	BaseAttackRoll     int    `yaml:"base_attack_roll" json:"base_attack_roll"`
	AdditionalModifier int    `yaml:"additional_modifier" json:"additional_modifier"`
	HitThreshold       int    `yaml:"hit_threshold" json:"hit_threshold"`
	Damage             int    `yaml:"damage" json:"damage"`
	AmmoSpent          int    `yaml:"ammo_spent" json:"ammo_spent"`
	ExtraAmmo          int    `yaml:"extra_ammo" json:"extra_ammo"`
}

// Input returns the preset as calculator input.
func (p *Preset) Input() marksman.AttackInput {
	return marksman.AttackInput{
		BaseAttackRoll:     p.BaseAttackRoll,
		AdditionalModifier: p.AdditionalModifier,
		HitThreshold:       p.HitThreshold,
		Damage:             p.Damage,
		AmmoSpent:          p.AmmoSpent,
		ExtraAmmo:          p.ExtraAmmo,
	}
}

func (p *Preset) validate(path string) error {
	if p.ID == "" {
		return fmt.Errorf("preset file %s: id must not be empty", path)
	}
	if p.Name == "" {
		return fmt.Errorf("preset file %s: name must not be empty", path)
	}
	return nil
}

// LoadPresets reads every .yaml/.yml file in dir as one Preset.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns the parsed presets (possibly empty) or a non-nil error.
func LoadPresets(dir string) ([]*Preset, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	presets := make([]*Preset, 0, len(files))
	for _, path := range files {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// LoadFile reads one preset from a YAML file.
func LoadFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing preset file %s: %w", path, err)
	}
	if err := p.validate(path); err != nil {
		return nil, err
	}
	return &p, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Registry indexes presets by ID. It is read-only after construction.
type Registry struct {
	byID    map[string]*Preset
	ordered []*Preset
}

// NewRegistry indexes presets.
//
// Postcondition: Returns an error if two presets share an ID.
func NewRegistry(presets []*Preset) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Preset, len(presets))}
	for _, p := range presets {
		if _, exists := r.byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate preset id %q", p.ID)
		}
		r.byID[p.ID] = p
		r.ordered = append(r.ordered, p)
	}
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].ID < r.ordered[j].ID })
	return r, nil
}

// Lookup returns the preset with the given ID, case-insensitively.
func (r *Registry) Lookup(id string) (*Preset, error) {
	if p, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p, nil
	}
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%q: %w", id, ErrUnknownPreset)
}

// All returns every preset sorted by ID.
func (r *Registry) All() []*Preset {
	out := make([]*Preset, len(r.ordered))
	copy(out, r.ordered)
	return out
}
