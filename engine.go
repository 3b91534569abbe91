package proref

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/notify"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/retry"
	"github.com/randalmurphal/proref/similarity"
	"github.com/randalmurphal/proref/store"
	"github.com/randalmurphal/proref/ticket"
)

// =============================================================================
// Collaborators
// =============================================================================

// Query selects tickets at the source.
type Query struct {
	// Expression is a source-specific filter such as a JQL query. Empty
	// selects the source's default backlog.
	Expression string `json:"expression,omitempty"`

	// IDs restricts the fetch to these tickets.
	IDs []string `json:"ids,omitempty"`

	// Limit caps the number of tickets. Zero means the source default.
	Limit int `json:"limit,omitempty"`
}

// Source is a ticket system: where tickets come from and where published
// artifacts go.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]ticket.Raw, error)

	// PublishComment posts markdown on the ticket and returns the remote
	// comment id.
	PublishComment(ctx context.Context, ticketID, markdown string) (string, error)
}

// QuestionGenerator produces refinement questions for a ticket.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, t *ticket.Ticket, preset string, related []ticket.Related) (string, error)
	Model() string
}

// TestCaseGenerator produces test cases for a ticket.
type TestCaseGenerator interface {
	GenerateTestCases(ctx context.Context, t *ticket.Ticket, preset string) (string, error)
	Model() string
}

// Embedder turns ticket text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// =============================================================================
// Configuration
// =============================================================================

// Config tunes the engine. Zero values are replaced by DefaultConfig's.
type Config struct {
	// Workers is the number of tickets processed in parallel per batch.
	Workers int

	// Retry governs every call to a source or provider.
	Retry retry.Policy

	// RelatedK and RelatedMin bound the related tickets given to the
	// question generator and stored as links.
	RelatedK   int
	RelatedMin float64

	// Preset names the domain prompt preset passed to generators.
	Preset string

	// PublishOnRun adds the publish stages to RunAll.
	PublishOnRun bool

	// SkipIssueTypes lists issue types that are never ingested.
	SkipIssueTypes []string

	Logger *slog.Logger
	Meter  metric.Meter
	Now    func() time.Time
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		Retry:          retry.DefaultPolicy(),
		RelatedK:       5,
		RelatedMin:     0.8,
		SkipIssueTypes: []string{"spike"},
		Logger:         slog.Default(),
		Now:            time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.Retry.MaxAttempts < 1 {
		logger := c.Retry.Logger
		c.Retry = d.Retry
		c.Retry.Logger = logger
	}
	if c.RelatedK < 1 {
		c.RelatedK = d.RelatedK
	}
	if c.RelatedMin == 0 {
		c.RelatedMin = d.RelatedMin
	}
	if c.SkipIssueTypes == nil {
		c.SkipIssueTypes = d.SkipIssueTypes
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Retry.Logger == nil {
		c.Retry.Logger = c.Logger
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Deps are the engine's collaborators. Only Store is required; a stage
// whose collaborator is missing fails with errors.ErrNotConfigured.
type Deps struct {
	Store     store.Store
	Index     similarity.Index
	Source    Source
	Questions QuestionGenerator
	TestCases TestCaseGenerator
	Embedder  Embedder

	// Scorer defaults to quality.HeuristicScorer.
	Scorer quality.Scorer

	// Notifier receives an event after every batch. Defaults to none.
	Notifier notify.Notifier
}

// =============================================================================
// Engine
// =============================================================================

// Engine drives tickets through the pipeline stages and answers questions
// about where every ticket stands.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	store     store.Store
	index     similarity.Index
	source    Source
	questions QuestionGenerator
	testCases TestCaseGenerator
	embedder  Embedder
	scorer    quality.Scorer
	notifier  notify.Notifier

	metrics    *metrics
	publishing keyedMutex
}

// New returns an engine over deps and loads the similarity index from the
// stored embeddings.
func New(ctx context.Context, cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store", prerrors.ErrNotConfigured)
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:       cfg,
		logger:    cfg.Logger,
		store:     deps.Store,
		index:     deps.Index,
		source:    deps.Source,
		questions: deps.Questions,
		testCases: deps.TestCases,
		embedder:  deps.Embedder,
		scorer:    deps.Scorer,
		notifier:  deps.Notifier,
		metrics:   newMetrics(cfg.Meter),
	}
	if e.index == nil {
		e.index = similarity.NewLinearIndex()
	}
	if e.scorer == nil {
		e.scorer = quality.HeuristicScorer{}
	}
	if e.notifier == nil {
		e.notifier = notify.NopNotifier{}
	}

	if err := e.RebuildIndex(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RebuildIndex loads every stored embedding into the similarity index.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	recs, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	for _, r := range recs {
		if r.Ticket == nil {
			continue
		}
		e.index.SetFingerprint(r.Ticket.ID, r.Ticket.Fingerprint)
		if r.Embedding == nil {
			continue
		}
		if err := e.index.Upsert(entryFor(r.Embedding)); err != nil {
			e.logger.Warn("skipping unusable embedding", "ticket", r.Ticket.ID, "error", err)
		}
	}
	e.logger.Debug("similarity index loaded", "entries", e.index.Len())
	return nil
}

func entryFor(emb *ticket.Embedding) similarity.Entry {
	return similarity.Entry{
		TicketID:    emb.TicketID,
		Vector:      emb.Vector,
		Model:       emb.Model,
		Fingerprint: emb.Fingerprint,
	}
}

func (e *Engine) now() time.Time {
	return e.cfg.Now().UTC()
}

func (e *Engine) sourceName() string {
	if e.source == nil {
		return ""
	}
	return e.source.Name()
}

func (e *Engine) skipped(issueType string) bool {
	for _, t := range e.cfg.SkipIssueTypes {
		if strings.EqualFold(strings.TrimSpace(issueType), t) {
			return true
		}
	}
	return false
}

func notFound(id string) error {
	return fmt.Errorf("%s: %w", id, prerrors.ErrTicketNotFound)
}

func notConfigured(what string) error {
	return fmt.Errorf("%w: no %s", prerrors.ErrNotConfigured, what)
}

// call runs op under the engine's retry policy and records the attempts.
func call[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := 0
	v, err := retry.DoValue(ctx, e.cfg.Retry, prerrors.Retryable, func(ctx context.Context) (T, error) {
		attempts++
		return fn(ctx)
	})
	e.metrics.call(ctx, op, attempts, err)
	return v, err
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
