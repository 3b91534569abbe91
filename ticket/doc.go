// Package ticket defines the records tracked by the refinement pipeline:
// tickets imported from a source system and everything derived from them
// (artifacts, embeddings, quality scores and related-ticket links), together
// with the per-stage states reported for each ticket.
//
// Derived records carry the fingerprint of the ticket content they were
// computed from. They are stale exactly when that fingerprint differs from
// the ticket's current one; see the fingerprint package.
package ticket
