// Package proref tracks tickets through a refinement pipeline and drives
// them from one stage to the next.
//
// A ticket is fetched from its source, embedded, scored for quality, and
// gets generated refinement questions and test cases that can be published
// back to the source as comments. Every derived value records the
// fingerprint of the ticket content it was computed from, so an edit at the
// source makes exactly the affected values stale and nothing else.
//
// The package is organized into subpackages by domain:
//
//   - ticket: tickets, artifacts, derived values and stage states
//   - fingerprint: canonical content hashing
//   - store: record persistence (memory and SQLite)
//   - similarity: nearest-neighbour queries over embeddings
//   - quality: score validation, parsing and the heuristic scorer
//   - retry: backoff policy for external calls
//   - errors: failure classification and CLI rendering
//   - http: HTTP client utilities
//   - jira, source: ticket source connectors
//   - provider: generation and embedding providers
//   - notify: batch notifications (log, webhook, Slack)
//   - config: settings file and environment resolution
//
// # Quick Start
//
//	st, _ := store.OpenSQL(ctx, ".proref/proref.db")
//	engine, _ := proref.New(ctx, proref.Config{}, proref.Deps{
//	    Store:     st,
//	    Source:    jiraSource,
//	    Embedder:  embedder,
//	    Questions: generator,
//	    TestCases: generator,
//	})
//
//	result, _ := engine.RunAll(ctx, proref.Query{}, proref.Selector{})
//	os.Exit(result.ExitCode())
package proref
