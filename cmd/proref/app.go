package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/randalmurphal/llmkit/model"
	"go.opentelemetry.io/otel"

	"github.com/randalmurphal/proref"
	"github.com/randalmurphal/proref/config"
	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/git"
	"github.com/randalmurphal/proref/jira"
	"github.com/randalmurphal/proref/notify"
	"github.com/randalmurphal/proref/prompt"
	"github.com/randalmurphal/proref/provider"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/retry"
	"github.com/randalmurphal/proref/source"
	"github.com/randalmurphal/proref/store"
	"github.com/randalmurphal/proref/task"
)

// app is everything a command needs, built from the resolved settings.
type app struct {
	engine   *proref.Engine
	settings config.Settings
	logger   *slog.Logger
	store    store.Store
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadSettings resolves the configuration with the persistent flags on top.
func (c *cli) loadSettings() (config.Settings, *config.Resolver, error) {
	r := c.resolver(c.stderr)
	flags := map[string]string{
		config.KeyDatabase:  c.flags.database,
		config.KeyLogFormat: c.flags.logFormat,
	}
	if c.flags.workers > 0 {
		flags[config.KeyWorkers] = strconv.Itoa(c.flags.workers)
	}
	s, err := config.Load(r.ResolveWithFlags(flags))
	if err != nil {
		return config.Settings{}, nil, err
	}
	return s, r, nil
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// open builds the engine. The caller closes the returned app.
func (c *cli) open(ctx context.Context) (*app, error) {
	s, r, err := c.loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(c.stderr, s.LogFormat, c.flags.verbose)

	dbPath := s.Database
	if !filepath.IsAbs(dbPath) && r.GitRoot() != "" {
		dbPath = filepath.Join(r.GitRoot(), dbPath)
	}
	st, err := store.OpenSQL(ctx, dbPath, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	deps, err := buildDeps(ctx, s, r.GitRoot(), logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	deps.Store = st

	engine, err := proref.New(ctx, engineConfig(s, logger), deps)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &app{engine: engine, settings: s, logger: logger, store: st}, nil
}

func engineConfig(s config.Settings, logger *slog.Logger) proref.Config {
	policy := retry.DefaultPolicy()
	if s.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = s.Retry.MaxAttempts
	}
	if s.Retry.InitialInterval > 0 {
		policy.InitialInterval = s.Retry.InitialInterval
	}
	if s.Retry.MaxInterval > 0 {
		policy.MaxInterval = s.Retry.MaxInterval
	}
	policy.Logger = logger

	return proref.Config{
		Workers:      s.Workers,
		Retry:        policy,
		RelatedK:     s.RelatedK,
		RelatedMin:   s.RelatedMin,
		Preset:       s.Preset,
		PublishOnRun: s.PublishOnRun,
		Logger:       logger,
		Meter:        otel.Meter("github.com/randalmurphal/proref"),
	}
}

// buildDeps creates every collaborator except the store. Collaborators
// that are not configured are left nil; the stages needing them report
// that when run.
func buildDeps(ctx context.Context, s config.Settings, root string, logger *slog.Logger) (proref.Deps, error) {
	var deps proref.Deps

	src, err := openSource(ctx, s, root, logger)
	if err != nil {
		return deps, err
	}
	deps.Source = src

	if root == "" {
		root = "."
	}
	prompts := prompt.NewLoader(root)
	if s.PresetFile != "" {
		path := s.PresetFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if err := prompts.LoadPresetFile(path); err != nil {
			return deps, err
		}
	}

	models := task.Resolve(s.Models.Global, map[task.Type]string{
		task.Questions: s.Models.Questions,
		task.TestCases: s.Models.TestCases,
		task.Score:     s.Models.Score,
	})
	// A provider without credentials leaves the generators unset so
	// commands that never call a model still work.
	text := func(m model.ModelName) (*provider.Text, error) {
		c, err := openCompleter(s, m, root)
		if err != nil {
			if errors.Is(err, prerrors.ErrNotConfigured) {
				logger.Debug("model provider not configured", "provider", s.Provider, "error", err)
				return nil, nil
			}
			return nil, err
		}
		return provider.NewText(c, prompts, provider.WithLogger(logger)), nil
	}

	questions, err := text(models.Questions)
	if err != nil {
		return deps, err
	}
	testCases, err := text(models.TestCases)
	if err != nil {
		return deps, err
	}
	if questions != nil {
		deps.Questions = questions
		deps.TestCases = testCases
	}

	deps.Scorer = quality.HeuristicScorer{}
	if s.Scorer == "model" {
		scorer, err := text(models.Score)
		if err != nil {
			return deps, err
		}
		if scorer == nil {
			return deps, fmt.Errorf("%w: scorer=model needs a model provider", prerrors.ErrNotConfigured)
		}
		deps.Scorer = scorer
	}

	deps.Embedder = provider.NewEmbeddings(provider.EmbeddingsConfig{
		BaseURL:    s.Embedding.URL,
		APIKey:     s.Embedding.APIKey,
		Model:      s.Embedding.Model,
		Dimensions: s.Embedding.Dimensions,
		Logger:     logger,
	})
	deps.Notifier = openNotifier(s, logger)
	return deps, nil
}

// openSource returns the configured ticket source, or nil when the source
// has no address configured. GitHub and GitLab default to the origin
// remote of the project repository.
func openSource(ctx context.Context, s config.Settings, root string, logger *slog.Logger) (proref.Source, error) {
	switch s.Source {
	case "github", "gitlab":
		url := s.Repo.URL
		if url == "" && root != "" {
			url = originURL(ctx, root, logger)
		}
		if url == "" {
			return nil, nil
		}
		platform := source.Platform(s.Repo.Platform)
		if platform == "" {
			platform = source.Platform(s.Source)
		}
		return source.Open(source.Remote{
			URL:      url,
			Token:    s.Repo.Token,
			Platform: platform,
			Labels:   s.Repo.Labels,
			Logger:   logger,
		})
	default:
		if s.Jira.URL == "" {
			return nil, nil
		}
		client, err := jira.NewClient(jiraConfig(s.Jira), jira.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("jira: %w", err)
		}
		return jira.NewSource(client), nil
	}
}

func originURL(ctx context.Context, root string, logger *slog.Logger) string {
	repo, err := git.Open(ctx, root)
	if err != nil {
		logger.Debug("no git repository for the issue tracker", "dir", root, "error", err)
		return ""
	}
	url, err := repo.RemoteURL(ctx, "origin")
	if err != nil {
		logger.Debug("no origin remote for the issue tracker", "error", err)
		return ""
	}
	return url
}

func jiraConfig(s config.JiraSettings) *jira.Config {
	cfg := jira.DefaultConfig()
	cfg.URL = s.URL
	cfg.JQL = s.JQL
	cfg.Project = s.Project
	cfg.AcceptanceCriteriaField = s.AcceptanceCriteriaField

	switch strings.TrimPrefix(strings.ToLower(s.APIVersion), "v") {
	case "2":
		cfg.APIVersion = jira.APIVersionV2
	case "3":
		cfg.APIVersion = jira.APIVersionV3
	case "", "auto":
		cfg.APIVersion = jira.APIVersionAuto
	default:
		cfg.APIVersion = jira.APIVersion(s.APIVersion)
	}

	cfg.Auth = jira.AuthConfig{
		Type:     jira.AuthType(s.Auth),
		Email:    s.Email,
		Token:    s.Token,
		Username: s.Username,
		Password: s.Password,
	}
	if cfg.Auth.Type == jira.AuthOAuth2 {
		cfg.Auth.AccessToken = s.Token
	}
	return cfg
}

// openCompleter returns the text completer for m.
func openCompleter(s config.Settings, m model.ModelName, workdir string) (provider.Completer, error) {
	switch s.Provider {
	case "anthropic":
		return provider.NewAnthropic(provider.AnthropicConfig{
			APIKey:  s.AnthropicKey,
			Model:   provider.AnthropicModelID(m),
			BaseURL: s.AnthropicURL,
		})
	default:
		return provider.NewClaudeCLI(string(m), workdir), nil
	}
}

func openNotifier(s config.Settings, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if s.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(s.WebhookURL, nil))
	}
	if s.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(s.SlackWebhook, notify.WithSlackUsername("proref")))
	}
	return notify.NewMultiNotifier(notifiers...)
}
