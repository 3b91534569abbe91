package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	prerrors "github.com/randalmurphal/proref/errors"
)

// ErrInvalidSetting is returned by Load for values that do not parse.
var ErrInvalidSetting = fmt.Errorf("%w: invalid setting", prerrors.ErrValidation)

// JiraSettings configures the Jira source.
type JiraSettings struct {
	URL                     string
	Auth                    string
	Email                   string
	Token                   string
	Username                string
	Password                string
	Project                 string
	JQL                     string
	AcceptanceCriteriaField string
	APIVersion              string
}

// RepoSettings configures the GitHub and GitLab sources.
type RepoSettings struct {
	URL      string
	Token    string
	Labels   []string
	Platform string
}

// ModelSettings selects models. Empty fields fall back to the tier
// defaults.
type ModelSettings struct {
	Global    string
	Questions string
	TestCases string
	Score     string
}

// EmbeddingSettings configures the embeddings endpoint.
type EmbeddingSettings struct {
	URL        string
	APIKey     string
	Model      string
	Dimensions int
}

// RetrySettings configures retries of external calls.
type RetrySettings struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Settings is the typed configuration of a proref run.
type Settings struct {
	Source string
	Jira   JiraSettings
	Repo   RepoSettings

	Provider     string
	Models       ModelSettings
	AnthropicKey string
	AnthropicURL string
	Scorer       string
	Embedding    EmbeddingSettings

	Database     string
	Workers      int
	Retry        RetrySettings
	RelatedK     int
	RelatedMin   float64
	Preset       string
	PresetFile   string
	PublishOnRun bool

	WebhookURL   string
	SlackWebhook string
	LogFormat    string
}

// Load converts resolved values into Settings, rejecting values that do
// not parse or are out of range.
func Load(r *Resolved) (Settings, error) {
	p := parser{r: r}

	s := Settings{
		Source: strings.ToLower(r.Get(KeySource)),
		Jira: JiraSettings{
			URL:                     r.Get(KeyJiraURL),
			Auth:                    r.Get(KeyJiraAuth),
			Email:                   r.Get(KeyJiraEmail),
			Token:                   r.Get(KeyJiraToken),
			Username:                r.Get(KeyJiraUsername),
			Password:                r.Get(KeyJiraPassword),
			Project:                 r.Get(KeyJiraProject),
			JQL:                     r.Get(KeyJiraJQL),
			AcceptanceCriteriaField: r.Get(KeyJiraACField),
			APIVersion:              r.Get(KeyJiraAPIVersion),
		},
		Repo: RepoSettings{
			URL:      r.Get(KeyRepoURL),
			Token:    r.Get(KeyRepoToken),
			Labels:   splitList(r.Get(KeyRepoLabels)),
			Platform: r.Get(KeyRepoPlatform),
		},
		Provider: strings.ToLower(r.Get(KeyProvider)),
		Models: ModelSettings{
			Global:    r.Get(KeyModel),
			Questions: r.Get(KeyModelQuestions),
			TestCases: r.Get(KeyModelTestCases),
			Score:     r.Get(KeyModelScore),
		},
		AnthropicKey: r.Get(KeyAnthropicKey),
		AnthropicURL: r.Get(KeyAnthropicURL),
		Scorer:       strings.ToLower(r.Get(KeyScorer)),
		Embedding: EmbeddingSettings{
			URL:        r.Get(KeyEmbeddingURL),
			APIKey:     r.Get(KeyEmbeddingKey),
			Model:      r.Get(KeyEmbeddingModel),
			Dimensions: p.integer(KeyEmbeddingDimensions, 1),
		},
		Database: r.Get(KeyDatabase),
		Workers:  p.integer(KeyWorkers, 1),
		Retry: RetrySettings{
			MaxAttempts:     p.integer(KeyRetryMax, 1),
			InitialInterval: p.duration(KeyRetryInitial),
			MaxInterval:     p.duration(KeyRetryMaxWait),
		},
		RelatedK:     p.integer(KeyRelatedK, 1),
		RelatedMin:   p.fraction(KeyRelatedMin),
		Preset:       r.Get(KeyPreset),
		PresetFile:   r.Get(KeyPresetFile),
		PublishOnRun: p.boolean(KeyPublishOnRun),
		WebhookURL:   r.Get(KeyWebhookURL),
		SlackWebhook: r.Get(KeySlackWebhook),
		LogFormat:    strings.ToLower(r.Get(KeyLogFormat)),
	}

	p.oneOf(KeySource, s.Source, "jira", "github", "gitlab")
	p.oneOf(KeyProvider, s.Provider, "claude-cli", "anthropic")
	p.oneOf(KeyScorer, s.Scorer, "heuristic", "model")
	p.oneOf(KeyLogFormat, s.LogFormat, "text", "json")

	if p.err != nil {
		return Settings{}, p.err
	}
	return s, nil
}

// parser keeps the first conversion error.
type parser struct {
	r   *Resolved
	err error
}

func (p *parser) fail(key, value, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: want %s", ErrInvalidSetting, key, value, want)
	}
}

func (p *parser) integer(key string, least int) int {
	v := p.r.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < least {
		p.fail(key, v, fmt.Sprintf("an integer >= %d", least))
		return 0
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	v := p.r.Get(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, v, "a duration such as 1s")
		return 0
	}
	return d
}

func (p *parser) fraction(key string) float64 {
	v := p.r.Get(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		p.fail(key, v, "a number between 0 and 1")
		return 0
	}
	return f
}

func (p *parser) boolean(key string) bool {
	v := p.r.Get(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, "true or false")
	}
	return b
}

func (p *parser) oneOf(key, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	p.fail(key, value, strings.Join(allowed, ", "))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
