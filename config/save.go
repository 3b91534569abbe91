package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned when saving a key proref does not read.
var ErrUnknownKey = errors.New("unknown config key")

// SaveConfig writes values into the global or local config file. Dotted
// keys are stored nested: "jira.url" becomes jira: {url: ...}.
type SaveConfig struct {
	// GlobalPath is the user-wide config file.
	GlobalPath string

	// LocalName is the project config file name in the git root.
	LocalName string

	// Keys, when set, restricts the keys that may be saved.
	Keys []Key
}

// NewProrefSaveConfig returns the SaveConfig used by `proref config set`.
func NewProrefSaveConfig() SaveConfig {
	return SaveConfig{GlobalPath: GlobalPath(), LocalName: LocalName, Keys: Keys}
}

func (c SaveConfig) check(key string) (Key, error) {
	if len(c.Keys) == 0 {
		return Key{Name: key}, nil
	}
	for _, k := range c.Keys {
		if k.Name == key {
			return k, nil
		}
	}
	names := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		names[i] = k.Name
	}
	return Key{}, fmt.Errorf("%w: %s\n\nValid keys: %s", ErrUnknownKey, key, strings.Join(names, ", "))
}

// SaveGlobal saves a key-value pair to the global config file.
func (c SaveConfig) SaveGlobal(key, value string) error {
	if c.GlobalPath == "" {
		return errors.New("global config path not configured")
	}
	if _, err := c.check(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.GlobalPath), 0o700); err != nil {
		return err
	}
	return update(c.GlobalPath, 0o600, func(m map[string]any) { setNested(m, key, parseValue(value)) })
}

// SaveLocal saves a key-value pair to the local config file in gitRoot.
// Secrets are refused; the local file is meant to be committed.
func (c SaveConfig) SaveLocal(gitRoot, key, value string) error {
	if gitRoot == "" {
		return errors.New("git root not found")
	}
	if c.LocalName == "" {
		return errors.New("local config name not configured")
	}
	k, err := c.check(key)
	if err != nil {
		return err
	}
	if k.Secret {
		return fmt.Errorf("%s is a secret: save it globally or set %s", key, EnvName(EnvPrefix, key))
	}
	path := filepath.Join(gitRoot, c.LocalName)
	return update(path, 0o644, func(m map[string]any) { setNested(m, key, parseValue(value)) })
}

// DeleteGlobalKey removes a key from the global config. A missing file or
// key is not an error.
func (c SaveConfig) DeleteGlobalKey(key string) error {
	if c.GlobalPath == "" {
		return errors.New("global config path not configured")
	}
	if _, err := os.Stat(c.GlobalPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return update(c.GlobalPath, 0o600, func(m map[string]any) { deleteNested(m, key) })
}

// update reads path, applies change and writes it back. A malformed file
// is reported rather than overwritten.
func update(path string, perm os.FileMode, change func(map[string]any)) error {
	existing := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if existing == nil {
			existing = make(map[string]any)
		}
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	change(existing)

	out, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, perm)
}

func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func deleteNested(m map[string]any, key string) {
	parts := strings.Split(key, ".")
	parents := []map[string]any{m}
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = child
		parents = append(parents, m)
	}
	delete(m, parts[len(parts)-1])

	// Drop sections left empty.
	for i := len(parents) - 1; i > 0; i-- {
		if len(parents[i]) == 0 {
			delete(parents[i-1], parts[i-1])
		}
	}
}

// parseValue stores true/false as YAML booleans.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
