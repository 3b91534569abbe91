package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresetsYAML []byte

// DefaultPreset is used when a preset is unknown or unset.
const DefaultPreset = "generic"

const defaultRole = "a QA assistant helping refine software requirements"

// Preset tailors generation to a product domain.
type Preset struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Role is who the model is asked to be.
	Role string `yaml:"role"`

	QuestionFocus []string `yaml:"question_focus"`
	TestCaseFocus []string `yaml:"testcase_focus"`

	// Preconditions hints what test case preconditions should name.
	Preconditions string `yaml:"preconditions"`
}

func parsePresets(data []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, err
	}
	for i := range presets {
		if presets[i].Key == "" {
			return nil, fmt.Errorf("preset %d has no key", i)
		}
		if presets[i].Role == "" {
			presets[i].Role = defaultRole
		}
		if presets[i].Name == "" {
			presets[i].Name = titleCase(presets[i].Key)
		}
	}
	return presets, nil
}

func builtinPresets() map[string]Preset {
	presets, err := parsePresets(builtinPresetsYAML)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded presets: %v", err))
	}
	m := make(map[string]Preset, len(presets))
	for _, p := range presets {
		m[p.Key] = p
	}
	return m
}

// LoadPresetFile adds the presets in a YAML file, replacing built-in
// presets with the same key.
func (l *Loader) LoadPresetFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}
	presets, err := parsePresets(data)
	if err != nil {
		return fmt.Errorf("parse presets %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range presets {
		l.presets[p.Key] = p
	}
	return nil
}

// Preset returns the named preset, or the generic one when key is unknown.
func (l *Loader) Preset(key string) Preset {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.presets[key]; ok {
		return p
	}
	return l.presets[DefaultPreset]
}

// Presets lists every preset, sorted by key.
func (l *Loader) Presets() []Preset {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Preset, 0, len(l.presets))
	for _, p := range l.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
