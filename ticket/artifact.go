package ticket

import (
	"fmt"
	"time"

	"github.com/randalmurphal/proref/fingerprint"
)

// Kind identifies a generated artifact type.
type Kind string

// Artifact kinds.
const (
	KindQuestions Kind = "questions"
	KindTestCases Kind = "test_cases"
)

// Kinds lists every artifact kind in pipeline order.
var Kinds = []Kind{KindQuestions, KindTestCases}

// ParseKind accepts the canonical names and the usual CLI spellings.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "questions", "question", "q":
		return KindQuestions, nil
	case "test_cases", "testcases", "test-cases", "tests", "tc":
		return KindTestCases, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q (want questions or testcases)", s)
	}
}

// Label returns a human readable name.
func (k Kind) Label() string {
	switch k {
	case KindQuestions:
		return "questions"
	case KindTestCases:
		return "test cases"
	default:
		return string(k)
	}
}

// PublishStatus is the stored publish state of an artifact.
type PublishStatus string

// Publish statuses. StalePublished is forced when a published artifact's
// ticket changes; it blocks publishing until the artifact is regenerated.
const (
	Unpublished    PublishStatus = "unpublished"
	Published      PublishStatus = "published"
	StalePublished PublishStatus = "stale-published"
)

// Artifact is generated content attached to a ticket.
type Artifact struct {
	ID       string `json:"id"`
	TicketID string `json:"ticketId"`
	Kind     Kind   `json:"kind"`

	// Content is the provider output as returned.
	Content string `json:"content"`

	// Items are the individual questions or test cases parsed from Content.
	Items []string `json:"items,omitempty"`

	// Model identifies the provider model that produced the content.
	Model string `json:"model,omitempty"`

	Fingerprint fingerprint.Value `json:"fingerprint"`
	GeneratedAt time.Time         `json:"generatedAt"`

	PublishStatus   PublishStatus `json:"publishStatus"`
	PublishedAt     time.Time     `json:"publishedAt,omitempty"`
	RemoteCommentID string        `json:"remoteCommentId,omitempty"`
}

// SourceFingerprint implements fingerprint.Stamped.
func (a *Artifact) SourceFingerprint() fingerprint.Value {
	return a.Fingerprint
}

// Clone returns a deep copy of a.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	if a.Items != nil {
		c.Items = append([]string(nil), a.Items...)
	}
	return &c
}
