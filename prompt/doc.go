// Package prompt renders the generation prompts.
//
// Templates are text/template files named questions, testcases and score.
// Defaults are embedded; a project overrides one by placing a file of the
// same name in .proref/prompts/ or prompts/.
//
// Domain presets (generic, healthcare, fintech, ecommerce, saas) set the
// role and focus areas injected into the question and test case prompts.
// More presets can be loaded from YAML with LoadPresetFile.
//
// Example usage:
//
//	loader := prompt.NewLoader(".")
//	text, err := loader.QuestionsPrompt(t, "fintech", related)
package prompt
