package source

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url     string
		want    Platform
		wantErr bool
	}{
		{"https://github.com/acme/shop.git", PlatformGitHub, false},
		{"git@github.com:acme/shop.git", PlatformGitHub, false},
		{"https://gitlab.com/acme/shop.git", PlatformGitLab, false},
		{"https://gitlab.example.com/group/sub/shop", PlatformGitLab, false},
		{"https://bitbucket.org/acme/shop.git", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := DetectPlatform(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectPlatform(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectPlatform(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseRepoFromURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"https://github.com/acme/shop.git", "acme", "shop", false},
		{"https://github.com/acme/shop", "acme", "shop", false},
		{"git@github.com:acme/shop.git", "acme", "shop", false},
		{"https://gitlab.com/group/sub/shop.git", "group/sub", "shop", false},
		{"git@gitlab.example.com:group/shop.git", "group", "shop", false},
		{"https://github.com/shop", "", "", true},
		{"not-a-url", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, repo, err := ParseRepoFromURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepoFromURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("ParseRepoFromURL(%q) = %q, %q, want %q, %q", tt.url, owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestHostURL(t *testing.T) {
	tests := map[string]string{
		"https://github.com/acme/shop.git":        "",
		"git@gitlab.com:acme/shop.git":            "",
		"https://gitlab.example.com/acme/shop":    "https://gitlab.example.com",
		"http://ghe.local/acme/shop.git":          "http://ghe.local",
		"git@gitlab.example.com:group/shop.git":   "https://gitlab.example.com",
	}
	for in, want := range tests {
		if got := hostURL(in); got != want {
			t.Errorf("hostURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromRemote(t *testing.T) {
	src, err := FromRemote("git@github.com:acme/shop.git", "token")
	if err != nil {
		t.Fatalf("FromRemote: %v", err)
	}
	if src.Name() != "github" {
		t.Errorf("Name() = %q, want github", src.Name())
	}

	src, err = FromRemote("https://gitlab.example.com/group/shop.git", "token")
	if err != nil {
		t.Fatalf("FromRemote: %v", err)
	}
	if src.Name() != "gitlab" {
		t.Errorf("Name() = %q, want gitlab", src.Name())
	}

	if _, err := FromRemote("https://github.com/acme/shop.git", ""); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestOpenPlatformOverride(t *testing.T) {
	src, err := Open(Remote{URL: "https://git.example.com/team/shop.git", Token: "token", Platform: PlatformGitLab})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Name() != "gitlab" {
		t.Errorf("Name() = %q, want gitlab", src.Name())
	}

	if _, err := Open(Remote{URL: "https://git.example.com/team/shop.git", Token: "token"}); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Open without platform: err = %v, want ErrUnknownPlatform", err)
	}
	if _, err := Open(Remote{URL: "https://git.example.com/team/shop.git", Token: "token", Platform: "bitbucket"}); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Open with bad platform: err = %v, want ErrUnknownPlatform", err)
	}
}

func TestSplitBody(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantDesc     string
		wantCriteria string
	}{
		{
			name:     "no section",
			body:     "  Just a description.\r\n",
			wantDesc: "Just a description.",
		},
		{
			name:         "section at end",
			body:         "Intro\n\n## Acceptance Criteria\n- a\n- b\n",
			wantDesc:     "Intro",
			wantCriteria: "- a\n- b",
		},
		{
			name:         "deeper headings stay in the section",
			body:         "## Acceptance criteria\n### Happy path\n- ok\n## Out of scope\n- refunds",
			wantDesc:     "## Out of scope\n- refunds",
			wantCriteria: "### Happy path\n- ok",
		},
		{
			name:     "mention in prose is not a heading",
			body:     "The acceptance criteria are below.",
			wantDesc: "The acceptance criteria are below.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, criteria := splitBody(tt.body)
			if diff := cmp.Diff([]string{tt.wantDesc, tt.wantCriteria}, []string{desc, criteria}); diff != "" {
				t.Errorf("splitBody() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIssueType(t *testing.T) {
	tests := []struct {
		labels []string
		want   string
	}{
		{nil, "Issue"},
		{[]string{"ready", "Bug"}, "Bug"},
		{[]string{"type::spike"}, "Spike"},
		{[]string{"type:enhancement"}, "Story"},
		{[]string{"frontend"}, "Issue"},
	}
	for _, tt := range tests {
		if got := issueType(tt.labels); got != tt.want {
			t.Errorf("issueType(%v) = %q, want %q", tt.labels, got, tt.want)
		}
	}
}

func TestIssueNumber(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{"12", 12, false},
		{"#12", 12, false},
		{"shop#12", 12, false},
		{"shop#", 0, true},
		{"shop#0", 0, true},
		{"PROJ-12", 0, true},
	}
	for _, tt := range tests {
		got, err := issueNumber(tt.id)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("issueNumber(%q) = %d, %v", tt.id, got, err)
		}
	}
}
