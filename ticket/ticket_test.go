package ticket

import (
	"testing"

	"github.com/randalmurphal/proref/fingerprint"
)

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"questions":  KindQuestions,
		"q":          KindQuestions,
		"testcases":  KindTestCases,
		"test-cases": KindTestCases,
		"test_cases": KindTestCases,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseKind("docs"); err == nil {
		t.Error("ParseKind(docs) should fail")
	}
}

func TestTicketText(t *testing.T) {
	tk := &Ticket{Title: "Login bug", Description: "  Users cannot log in.  "}
	if got, want := tk.Text(), "Login bug\n\nUsers cannot log in."; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	tk.AcceptanceCriteria = "Login works"
	if got, want := tk.Text(), "Login bug\n\nUsers cannot log in.\n\nLogin works"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestRawAndTicketShareFingerprint(t *testing.T) {
	raw := Raw{ID: "ABC-1", Title: "Login bug", Description: "broken", Fields: map[string]string{"component": "auth"}}
	var tk Ticket
	tk.Apply(raw)
	if fingerprint.Of(raw.Content()) != fingerprint.Of(tk.Content()) {
		t.Error("ticket content fingerprint differs from raw")
	}
	raw.Fields["component"] = "billing"
	if tk.Fields["component"] != "auth" {
		t.Error("Apply must copy fields")
	}
}
