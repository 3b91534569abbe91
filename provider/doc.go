// Package provider implements the model-backed collaborators of the
// pipeline: question and test case generation, quality scoring, and
// embeddings.
//
// Text generation runs on a Completer. Two are provided:
//   - LLM wraps a flowgraph llm.Client (for example the Claude CLI)
//   - Anthropic calls the Anthropic Messages API through the official SDK
//
// A Text is bound to one Completer and so to one model. Build one Text per
// task when the tasks use different models:
//
//	models := task.Resolve(cfg.Model, nil)
//	questions := provider.NewText(provider.NewLLM(cliFor(models.Questions), string(models.Questions)), loader)
//
// Embeddings calls an OpenAI-compatible /v1/embeddings endpoint.
//
// Provider failures are normalized to the sentinels in the http package
// so errors.Classify treats every vendor alike.
package provider
