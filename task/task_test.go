package task

import (
	"testing"

	"github.com/randalmurphal/llmkit/model"
)

func TestTierForTask(t *testing.T) {
	tests := []struct {
		task         Type
		expectedTier model.Tier
	}{
		{Questions, model.TierDefault},
		{TestCases, model.TierDefault},
		{Score, model.TierFast},
		{Type("unknown"), model.TierDefault},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			if got := TierForTask(tt.task); got != tt.expectedTier {
				t.Errorf("TierForTask(%s) = %v, want %v", tt.task, got, tt.expectedTier)
			}
		})
	}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		task     Type
		expected model.ModelName
	}{
		{Questions, model.ModelSonnet},
		{TestCases, model.ModelSonnet},
		{Score, model.ModelHaiku},
		{Type("unknown"), model.ModelSonnet},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			if got := SelectModel(tt.task); got != tt.expected {
				t.Errorf("SelectModel(%s) = %s, want %s", tt.task, got, tt.expected)
			}
		})
	}
}

func TestNewSelector(t *testing.T) {
	t.Run("default behavior", func(t *testing.T) {
		selector := NewSelector()

		if got := selector.Select(Questions); got != model.ModelSonnet {
			t.Errorf("Select(Questions) = %s, want %s", got, model.ModelSonnet)
		}
		if got := selector.Select(Score); got != model.ModelHaiku {
			t.Errorf("Select(Score) = %s, want %s", got, model.ModelHaiku)
		}
	})

	t.Run("with global override", func(t *testing.T) {
		selector := NewSelector(model.WithGlobalOverride(model.ModelOpus))

		if got := selector.Select(Score); got != model.ModelOpus {
			t.Errorf("Select(Score) = %s, want %s", got, model.ModelOpus)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		got := Resolve("", nil)
		want := Models{Questions: model.ModelSonnet, TestCases: model.ModelSonnet, Score: model.ModelHaiku}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
	})

	t.Run("task override beats global", func(t *testing.T) {
		got := Resolve(string(model.ModelOpus), map[Type]string{Score: "claude-custom"})
		want := Models{Questions: model.ModelOpus, TestCases: model.ModelOpus, Score: "claude-custom"}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
	})
}
