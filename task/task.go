package task

import (
	"github.com/randalmurphal/llmkit/model"
)

// Type is a kind of model call the pipeline makes. It determines which
// model tier is appropriate.
type Type string

const (
	// Generation that reasons about the ticket - default tier
	Questions Type = "questions"
	TestCases Type = "testcases"

	// Short structured answers - fast tier
	Score Type = "score"
)

// DefaultModelMap maps task types to default models.
var DefaultModelMap = map[Type]model.ModelName{
	Questions: model.ModelSonnet,
	TestCases: model.ModelSonnet,
	Score:     model.ModelHaiku,
}

// TierForTask returns the appropriate tier for a task type.
func TierForTask(t Type) model.Tier {
	switch t {
	case Score:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector using the task-to-tier mapping.
// Options such as model.WithGlobalOverride or model.WithTaskOverride
// are applied after it.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if t, ok := task.(Type); ok {
				return TierForTask(t)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel selects the model for a task type from DefaultModelMap,
// falling back to the tier default.
func SelectModel(t Type) model.ModelName {
	if m, ok := DefaultModelMap[t]; ok {
		return m
	}
	switch TierForTask(t) {
	case model.TierFast:
		return model.ModelHaiku
	default:
		return model.ModelSonnet
	}
}

// Models resolves the model for each generation task. Empty overrides
// keep the selector's choice.
type Models struct {
	Questions model.ModelName
	TestCases model.ModelName
	Score     model.ModelName
}

// Resolve picks models for the pipeline's tasks. global, when set,
// replaces every tier default; per-task overrides win over global.
func Resolve(global string, overrides map[Type]string) Models {
	var opts []model.SelectorOption
	if global != "" {
		opts = append(opts, model.WithGlobalOverride(model.ModelName(global)))
	}
	s := NewSelector(opts...)

	pick := func(t Type) model.ModelName {
		if m := overrides[t]; m != "" {
			return model.ModelName(m)
		}
		return s.Select(t)
	}
	return Models{
		Questions: pick(Questions),
		TestCases: pick(TestCases),
		Score:     pick(Score),
	}
}
