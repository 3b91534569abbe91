// Package task maps the pipeline's model calls to llmkit model tiers.
//
// Question and test case generation use the default tier; quality
// scoring uses the fast tier.
//
// Example usage:
//
//	models := task.Resolve(cfg.Model, map[task.Type]string{task.Score: cfg.ScoreModel})
//	questions := models.Questions
package task
