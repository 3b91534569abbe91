package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner answers git invocations from a table keyed by the joined
// arguments.
type fakeRunner struct {
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, dir+": "+name+" "+key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.answers[key], nil
}

func TestOpen(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{"rev-parse --show-toplevel": "/work/shop"}}

	repo, err := Open(t.Context(), "/work/shop/cmd", WithRunner(runner))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := repo.Root(); got != "/work/shop" {
		t.Errorf("Root() = %q, want /work/shop", got)
	}
	if len(runner.calls) != 1 || !strings.HasPrefix(runner.calls[0], "/work/shop/cmd: git") {
		t.Errorf("calls = %v", runner.calls)
	}
}

func TestOpenNotARepo(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"rev-parse --show-toplevel": &Error{Op: "git rev-parse", Output: "fatal: not a git repository"},
	}}

	_, err := Open(t.Context(), "/tmp", WithRunner(runner))
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("err = %v, want ErrNotGitRepo", err)
	}
}

func TestRemoteURL(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		err     error
		want    string
		wantErr error
	}{
		{name: "origin", answer: "git@github.com:acme/shop.git", want: "git@github.com:acme/shop.git"},
		{name: "missing remote", err: &Error{Op: "git remote", Output: "error: No such remote 'origin'"}, wantErr: ErrNoRemote},
		{name: "empty output", wantErr: ErrNoRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{answers: map[string]string{
				"rev-parse --show-toplevel": "/work/shop",
				"remote get-url origin":     tt.answer,
			}}
			if tt.err != nil {
				runner.errs = map[string]error{"remote get-url origin": tt.err}
			}
			repo, err := Open(t.Context(), "/work/shop", WithRunner(runner))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			got, err := repo.RemoteURL(t.Context(), "origin")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RemoteURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("RemoteURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecRunnerWithGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runner := NewExecRunner()
	if _, err := runner.Run(t.Context(), dir, "git", "init", "-q"); err != nil {
		t.Fatalf("git init: %v", err)
	}
	if _, err := runner.Run(t.Context(), dir, "git", "remote", "add", "origin", "https://gitlab.com/acme/shop.git"); err != nil {
		t.Fatalf("git remote add: %v", err)
	}
	sub := filepath.Join(dir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	root, err := FindRoot(sub)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(root)
	if gotRoot != wantRoot {
		t.Errorf("FindRoot() = %q, want %q", gotRoot, wantRoot)
	}

	repo, err := Open(t.Context(), sub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	url, err := repo.RemoteURL(t.Context(), "origin")
	if err != nil {
		t.Fatalf("RemoteURL: %v", err)
	}
	if url != "https://gitlab.com/acme/shop.git" {
		t.Errorf("RemoteURL() = %q", url)
	}

	if _, err := repo.RemoteURL(t.Context(), "upstream"); !errors.Is(err, ErrNoRemote) {
		t.Errorf("upstream err = %v, want ErrNoRemote", err)
	}
}
