package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResolverConfig configures the hierarchical config resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to key names for environment variable lookup.
	// With "PROREF_", key "jira.url" maps to PROREF_JIRA_URL.
	EnvPrefix string

	// GlobalPath is the user-wide config file,
	// e.g. ~/.config/proref/config.yaml.
	GlobalPath string

	// LocalName is the project config file name looked up in the git root,
	// e.g. ".proref.yaml".
	LocalName string

	// Keys lists the recognised keys with their defaults. Keys not listed
	// are ignored in files and never read from the environment.
	Keys []Key

	// GitRootFinder finds the project root. Defaults to walking up to the
	// nearest .git directory.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter receives warnings. Defaults to os.Stderr.
	ErrWriter io.Writer
}

// Resolver merges defaults, config files and the environment.
type Resolver struct {
	config    ResolverConfig
	known     map[string]Key
	localPath string
	gitRoot   string

	// Warnings collects non-fatal issues found while resolving.
	Warnings []string
}

// NewResolver creates a resolver. The local config is looked up in the
// git root of the working directory.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := newResolver(cfg)

	find := cfg.GitRootFinder
	if find == nil {
		find = func(dir string) (string, error) { return findGitRoot(dir), nil }
	}
	if root, err := find("."); err == nil && root != "" {
		r.gitRoot = root
		if cfg.LocalName != "" {
			r.localPath = filepath.Join(root, cfg.LocalName)
		}
	}
	return r
}

// NewResolverWithPaths creates a resolver reading the given files.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath string) *Resolver {
	cfg.GlobalPath = globalPath
	r := newResolver(cfg)
	r.localPath = localPath
	return r
}

func newResolver(cfg ResolverConfig) *Resolver {
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}
	known := make(map[string]Key, len(cfg.Keys))
	for _, k := range cfg.Keys {
		known[k.Name] = k
	}
	return &Resolver{config: cfg, known: known}
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Resolved holds the merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or "" if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns where a key's value came from.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// GetWithSource returns both the value and its source.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	return c.values[key], c.sources[key]
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Keys returns all set keys, sorted.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Resolved) set(key, value string, src Source) {
	c.values[key] = value
	c.sources[key] = src
}

// Resolve merges every source.
// Priority (highest to lowest): env > local > global > defaults.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	for _, k := range r.config.Keys {
		if k.Default != "" {
			cfg.set(k.Name, k.Default, SourceDefault)
		}
	}
	r.applyFile(cfg, r.config.GlobalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)
	r.applyEnv(cfg)

	return cfg
}

// ResolveWithFlags resolves config and applies non-empty flag values on
// top.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			cfg.set(key, value, SourceFlag)
		}
	}
	return cfg
}

func (r *Resolver) applyFile(cfg *Resolved, path string, src Source) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return // A missing file is not an error
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}

	for key, value := range flatten("", parsed) {
		k, ok := r.known[key]
		if len(r.known) > 0 && !ok {
			r.warn(fmt.Sprintf("%s: unknown key %q", path, key))
			continue
		}
		if src == SourceLocal && k.Secret {
			r.warn(fmt.Sprintf("%s: %s is a secret; keep it in the global config or the environment", path, key))
		}
		if value != "" {
			cfg.set(key, value, src)
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	if r.config.EnvPrefix == "" {
		return
	}
	for _, k := range r.config.Keys {
		if value := os.Getenv(EnvName(r.config.EnvPrefix, k.Name)); value != "" {
			cfg.set(k.Name, value, SourceEnv)
		}
	}
}

// EnvName returns the environment variable read for key.
func EnvName(prefix, key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return prefix + strings.ToUpper(r.Replace(key))
}

// GitRoot returns the detected git root directory.
func (r *Resolver) GitRoot() string {
	return r.gitRoot
}

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string {
	return r.config.GlobalPath
}

// LocalPath returns the path to the local config file.
func (r *Resolver) LocalPath() string {
	return r.localPath
}

// flatten turns nested maps into dotted keys: {jira: {url: x}} becomes
// "jira.url" = x. Lists are joined with commas.
func flatten(prefix string, m map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			for fk, fv := range flatten(key, val) {
				out[fk] = fv
			}
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if s := toString(item); s != "" {
					parts = append(parts, s)
				}
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = toString(val)
		}
	}
	return out
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, uint64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// findGitRoot finds the git root by looking for a .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
