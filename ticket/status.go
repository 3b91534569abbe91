package ticket

import (
	"fmt"

	"github.com/randalmurphal/proref/fingerprint"
)

// Stage names a pipeline stage.
type Stage string

// Pipeline stages. Generate and publish are tracked per artifact kind.
const (
	StageFetch    Stage = "fetch"
	StageEmbed    Stage = "embed"
	StageScore    Stage = "score"
	StageGenerate Stage = "generate"
	StagePublish  Stage = "publish"
)

// FetchState is the fetch stage state.
type FetchState string

// Fetch states.
const (
	FetchAbsent  FetchState = "absent"
	FetchFetched FetchState = "fetched"
)

// EmbedState is the embed stage state.
type EmbedState string

// Embed states.
const (
	EmbedNone    EmbedState = "none"
	EmbedCurrent EmbedState = "current"
	EmbedStale   EmbedState = "stale"
)

// ScoreState is the quality scoring state.
type ScoreState string

// Score states.
const (
	ScoreNone    ScoreState = "none"
	ScoreCurrent ScoreState = "current"
	ScoreStale   ScoreState = "stale"
)

// GenerateState is the generate stage state of one artifact kind.
type GenerateState string

// Generate states.
const (
	GenerateNone      GenerateState = "none"
	GenerateGenerated GenerateState = "generated"
	GenerateStale     GenerateState = "stale"
)

// PublishState is the publish stage state of one artifact kind.
type PublishState string

// Publish states. PublishNone means there is no artifact to publish.
const (
	PublishNone        PublishState = "none"
	PublishUnpublished PublishState = "unpublished"
	PublishPublished   PublishState = "published"
	PublishStale       PublishState = "stale-published"
)

// Status is the state of every stage for one ticket.
type Status struct {
	TicketID    string                 `json:"ticketId"`
	Fingerprint fingerprint.Value      `json:"fingerprint"`
	Fetch       FetchState             `json:"fetch"`
	Embed       EmbedState             `json:"embed"`
	Score       ScoreState             `json:"score"`
	Generate    map[Kind]GenerateState `json:"generate"`
	Publish     map[Kind]PublishState  `json:"publish"`
}

// State returns the state of a stage as a string. kind is ignored for
// stages that are not per-kind.
func (s Status) State(stage Stage, kind Kind) string {
	switch stage {
	case StageFetch:
		return string(s.Fetch)
	case StageEmbed:
		return string(s.Embed)
	case StageScore:
		return string(s.Score)
	case StageGenerate:
		return string(s.Generate[kind])
	case StagePublish:
		return string(s.Publish[kind])
	default:
		return ""
	}
}

// StageKey identifies a stage column in aggregate counts, e.g. "embed" or
// "generate:questions".
type StageKey string

// Key returns the StageKey for stage and kind.
func Key(stage Stage, kind Kind) StageKey {
	if stage == StageGenerate || stage == StagePublish {
		return StageKey(fmt.Sprintf("%s:%s", stage, kind))
	}
	return StageKey(stage)
}

// StageKeys lists every stage column in pipeline order.
func StageKeys() []StageKey {
	keys := []StageKey{Key(StageFetch, ""), Key(StageEmbed, ""), Key(StageScore, "")}
	for _, k := range Kinds {
		keys = append(keys, Key(StageGenerate, k))
	}
	for _, k := range Kinds {
		keys = append(keys, Key(StagePublish, k))
	}
	return keys
}

// Counts maps each stage column to the number of tickets in each state.
type Counts map[StageKey]map[string]int

// Add counts every stage of s.
func (c Counts) Add(s Status) {
	c.inc(Key(StageFetch, ""), string(s.Fetch))
	c.inc(Key(StageEmbed, ""), string(s.Embed))
	c.inc(Key(StageScore, ""), string(s.Score))
	for _, k := range Kinds {
		c.inc(Key(StageGenerate, k), string(s.Generate[k]))
		c.inc(Key(StagePublish, k), string(s.Publish[k]))
	}
}

func (c Counts) inc(key StageKey, state string) {
	m, ok := c[key]
	if !ok {
		m = make(map[string]int)
		c[key] = m
	}
	m[state]++
}
