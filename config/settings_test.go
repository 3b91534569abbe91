package config

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	prerrors "github.com/randalmurphal/proref/errors"
)

func prorefResolver() *Resolver {
	return NewResolverWithPaths(ResolverConfig{
		EnvPrefix: EnvPrefix,
		Keys:      Keys,
		ErrWriter: io.Discard,
	}, "", "")
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(prorefResolver().Resolve())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Source != "jira" || s.Provider != "claude-cli" || s.Scorer != "heuristic" {
		t.Errorf("kinds = %s/%s/%s", s.Source, s.Provider, s.Scorer)
	}
	want := RetrySettings{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
	if diff := cmp.Diff(want, s.Retry); diff != "" {
		t.Errorf("Retry mismatch (-want +got):\n%s", diff)
	}
	if s.Workers != 4 || s.RelatedK != 5 || s.RelatedMin != 0.8 {
		t.Errorf("Workers/RelatedK/RelatedMin = %d/%d/%v", s.Workers, s.RelatedK, s.RelatedMin)
	}
	if s.Embedding.Dimensions != 1536 || s.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding = %+v", s.Embedding)
	}
	if s.Preset != "generic" || s.PublishOnRun {
		t.Errorf("Preset/PublishOnRun = %s/%v", s.Preset, s.PublishOnRun)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROREF_SOURCE", "GitHub")
	t.Setenv("PROREF_REPO_LABELS", "ready, backend ,")
	t.Setenv("PROREF_MODELS_SCORE", "claude-haiku")
	t.Setenv("PROREF_PUBLISH_ON_RUN", "true")

	s, err := Load(prorefResolver().Resolve())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Source != "github" {
		t.Errorf("Source = %q", s.Source)
	}
	if diff := cmp.Diff([]string{"ready", "backend"}, s.Repo.Labels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if s.Models.Score != "claude-haiku" || !s.PublishOnRun {
		t.Errorf("Models.Score/PublishOnRun = %q/%v", s.Models.Score, s.PublishOnRun)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{KeyWorkers, "0"},
		{KeyWorkers, "many"},
		{KeyRetryInitial, "soon"},
		{KeyRelatedMin, "1.5"},
		{KeyPublishOnRun, "maybe"},
		{KeySource, "trello"},
		{KeyProvider, "gpt"},
		{KeyLogFormat, "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			resolved := prorefResolver().ResolveWithFlags(map[string]string{tt.key: tt.value})
			_, err := Load(resolved)
			if !errors.Is(err, ErrInvalidSetting) {
				t.Fatalf("Load() error = %v, want ErrInvalidSetting", err)
			}
			if prerrors.Classify(err) != prerrors.KindValidation {
				t.Errorf("Classify() = %s, want validation", prerrors.Classify(err))
			}
		})
	}
}

func TestLookupKey(t *testing.T) {
	k, ok := LookupKey(KeyJiraToken)
	if !ok || !k.Secret {
		t.Errorf("LookupKey(%s) = %+v, %v", KeyJiraToken, k, ok)
	}
	if _, ok := LookupKey("nope"); ok {
		t.Error("LookupKey(nope) found a key")
	}
}
