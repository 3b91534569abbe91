package ticket

import "github.com/randalmurphal/proref/fingerprint"

// Record is a ticket together with everything derived from it. It is the
// unit of storage: a store reads and writes a record atomically, so a
// ticket's content and the fingerprints recorded against it never diverge.
type Record struct {
	Ticket    *Ticket            `json:"ticket"`
	Artifacts map[Kind]*Artifact `json:"artifacts,omitempty"`
	Embedding *Embedding         `json:"embedding,omitempty"`
	Score     *QualityScore      `json:"score,omitempty"`
}

// Artifact returns the artifact of the given kind, or nil.
func (r *Record) Artifact(kind Kind) *Artifact {
	if r.Artifacts == nil {
		return nil
	}
	return r.Artifacts[kind]
}

// SetArtifact stores a, replacing any artifact of the same kind.
func (r *Record) SetArtifact(a *Artifact) {
	if r.Artifacts == nil {
		r.Artifacts = make(map[Kind]*Artifact)
	}
	r.Artifacts[a.Kind] = a
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Ticket:    r.Ticket.Clone(),
		Embedding: r.Embedding.Clone(),
		Score:     r.Score.Clone(),
	}
	if r.Artifacts != nil {
		c.Artifacts = make(map[Kind]*Artifact, len(r.Artifacts))
		for k, a := range r.Artifacts {
			c.Artifacts[k] = a.Clone()
		}
	}
	return c
}

// current returns the ticket's fingerprint, or the zero value.
func (r *Record) current() fingerprint.Value {
	if r.Ticket == nil {
		return ""
	}
	return r.Ticket.Fingerprint
}

// Status derives the per-stage states of the record.
func (r *Record) Status() Status {
	st := Status{
		Fetch:    FetchAbsent,
		Embed:    EmbedNone,
		Score:    ScoreNone,
		Generate: make(map[Kind]GenerateState, len(Kinds)),
		Publish:  make(map[Kind]PublishState, len(Kinds)),
	}
	if r == nil || r.Ticket == nil {
		for _, k := range Kinds {
			st.Generate[k] = GenerateNone
			st.Publish[k] = PublishNone
		}
		return st
	}

	current := r.current()
	st.TicketID = r.Ticket.ID
	st.Fingerprint = current
	st.Fetch = FetchFetched

	switch {
	case r.Embedding == nil:
	case fingerprint.IsStale(r.Embedding, current):
		st.Embed = EmbedStale
	default:
		st.Embed = EmbedCurrent
	}

	switch {
	case r.Score == nil:
	case fingerprint.IsStale(r.Score, current):
		st.Score = ScoreStale
	default:
		st.Score = ScoreCurrent
	}

	for _, k := range Kinds {
		a := r.Artifact(k)
		st.Generate[k] = generateState(a, current)
		st.Publish[k] = publishState(a, current)
	}
	return st
}

func generateState(a *Artifact, current fingerprint.Value) GenerateState {
	switch {
	case a == nil:
		return GenerateNone
	case fingerprint.IsStale(a, current):
		return GenerateStale
	default:
		return GenerateGenerated
	}
}

func publishState(a *Artifact, current fingerprint.Value) PublishState {
	if a == nil {
		return PublishNone
	}
	// A published artifact whose ticket moved on reads as stale-published
	// even before the engine rewrites the stored status.
	if a.PublishStatus == StalePublished ||
		(a.PublishStatus == Published && fingerprint.IsStale(a, current)) {
		return PublishStale
	}
	if a.PublishStatus == Published {
		return PublishPublished
	}
	return PublishUnpublished
}
