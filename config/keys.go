package config

import (
	"os"
	"path/filepath"
)

// Key describes one configuration key.
type Key struct {
	Name    string
	Default string
	Usage   string

	// Secret keys are redacted by `proref config get` and are not
	// expected in the shared local config.
	Secret bool
}

// Application file locations and environment prefix.
const (
	EnvPrefix = "PROREF_"
	AppDir    = "proref"
	LocalName = ".proref.yaml"
)

// Key names.
const (
	KeySource = "source"

	KeyJiraURL        = "jira.url"
	KeyJiraAuth       = "jira.auth"
	KeyJiraEmail      = "jira.email"
	KeyJiraToken      = "jira.token"
	KeyJiraUsername   = "jira.username"
	KeyJiraPassword   = "jira.password"
	KeyJiraProject    = "jira.project"
	KeyJiraJQL        = "jira.jql"
	KeyJiraACField    = "jira.acceptance_criteria_field"
	KeyJiraAPIVersion = "jira.api_version"

	KeyRepoURL      = "repo.url"
	KeyRepoToken    = "repo.token"
	KeyRepoLabels   = "repo.labels"
	KeyRepoPlatform = "repo.platform"

	KeyProvider       = "provider"
	KeyModel          = "model"
	KeyModelQuestions = "models.questions"
	KeyModelTestCases = "models.testcases"
	KeyModelScore     = "models.score"
	KeyAnthropicKey   = "anthropic.api_key"
	KeyAnthropicURL   = "anthropic.base_url"
	KeyScorer         = "scorer"

	KeyEmbeddingURL        = "embedding.url"
	KeyEmbeddingKey        = "embedding.api_key"
	KeyEmbeddingModel      = "embedding.model"
	KeyEmbeddingDimensions = "embedding.dimensions"

	KeyDatabase     = "database"
	KeyWorkers      = "workers"
	KeyRetryMax     = "retry.max_attempts"
	KeyRetryInitial = "retry.initial_interval"
	KeyRetryMaxWait = "retry.max_interval"
	KeyRelatedK     = "related.k"
	KeyRelatedMin   = "related.min"
	KeyPreset       = "preset"
	KeyPresetFile   = "preset_file"
	KeyPublishOnRun = "publish_on_run"
	KeyWebhookURL   = "notify.webhook_url"
	KeySlackWebhook = "notify.slack_webhook"
	KeyLogFormat    = "log.format"
)

// Keys is every key proref reads, with its default.
var Keys = []Key{
	{Name: KeySource, Default: "jira", Usage: "ticket source: jira, github or gitlab"},

	{Name: KeyJiraURL, Usage: "Jira base URL"},
	{Name: KeyJiraAuth, Default: "api_token", Usage: "Jira auth: api_token, basic or pat"},
	{Name: KeyJiraEmail, Usage: "Jira account email (api_token auth)"},
	{Name: KeyJiraToken, Usage: "Jira API token or personal access token", Secret: true},
	{Name: KeyJiraUsername, Usage: "Jira username (basic auth)"},
	{Name: KeyJiraPassword, Usage: "Jira password (basic auth)", Secret: true},
	{Name: KeyJiraProject, Usage: "Jira project key for the default backlog query"},
	{Name: KeyJiraJQL, Usage: "default backlog JQL"},
	{Name: KeyJiraACField, Usage: "custom field holding acceptance criteria"},
	{Name: KeyJiraAPIVersion, Default: "auto", Usage: "Jira REST version: auto, 2 or 3"},

	{Name: KeyRepoURL, Usage: "GitHub or GitLab repository URL"},
	{Name: KeyRepoToken, Usage: "GitHub or GitLab token", Secret: true},
	{Name: KeyRepoLabels, Usage: "comma-separated labels selecting backlog issues"},
	{Name: KeyRepoPlatform, Usage: "force github or gitlab for self-hosted hosts"},

	{Name: KeyProvider, Default: "claude-cli", Usage: "text provider: claude-cli or anthropic"},
	{Name: KeyModel, Usage: "model for every generation task"},
	{Name: KeyModelQuestions, Usage: "model for questions"},
	{Name: KeyModelTestCases, Usage: "model for test cases"},
	{Name: KeyModelScore, Usage: "model for quality scores"},
	{Name: KeyAnthropicKey, Usage: "Anthropic API key", Secret: true},
	{Name: KeyAnthropicURL, Usage: "Anthropic API root, for proxies"},
	{Name: KeyScorer, Default: "heuristic", Usage: "quality scorer: heuristic or model"},

	{Name: KeyEmbeddingURL, Default: "https://api.openai.com", Usage: "OpenAI-compatible embeddings API root"},
	{Name: KeyEmbeddingKey, Usage: "embeddings API key", Secret: true},
	{Name: KeyEmbeddingModel, Default: "text-embedding-3-small", Usage: "embedding model"},
	{Name: KeyEmbeddingDimensions, Default: "1536", Usage: "embedding vector size"},

	{Name: KeyDatabase, Default: filepath.Join(".proref", "proref.db"), Usage: "state database path"},
	{Name: KeyWorkers, Default: "4", Usage: "tickets processed in parallel"},
	{Name: KeyRetryMax, Default: "3", Usage: "attempts per external call"},
	{Name: KeyRetryInitial, Default: "1s", Usage: "first retry wait"},
	{Name: KeyRetryMaxWait, Default: "30s", Usage: "longest retry wait"},
	{Name: KeyRelatedK, Default: "5", Usage: "related tickets per ticket"},
	{Name: KeyRelatedMin, Default: "0.8", Usage: "minimum related similarity"},
	{Name: KeyPreset, Default: "generic", Usage: "domain preset for prompts"},
	{Name: KeyPresetFile, Usage: "YAML file with extra presets"},
	{Name: KeyPublishOnRun, Default: "false", Usage: "publish generated content during run"},
	{Name: KeyWebhookURL, Usage: "webhook notified after every batch"},
	{Name: KeySlackWebhook, Usage: "Slack incoming webhook notified after every batch", Secret: true},
	{Name: KeyLogFormat, Default: "text", Usage: "log format: text or json"},
}

// LookupKey returns the key named name.
func LookupKey(name string) (Key, bool) {
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// GlobalPath returns ~/.config/proref/config.yaml, or "" when the home
// directory is unknown.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppDir, "config.yaml")
}

// NewProrefResolver returns the resolver used by the proref command.
func NewProrefResolver() *Resolver {
	return NewResolver(ResolverConfig{
		EnvPrefix:  EnvPrefix,
		GlobalPath: GlobalPath(),
		LocalName:  LocalName,
		Keys:       Keys,
	})
}
