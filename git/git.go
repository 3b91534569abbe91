package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner runs a command in dir and returns its trimmed stdout.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns the default runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run implements CommandRunner. A failing command returns an *Error with
// the command's stderr as Output.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &Error{
			Op:     name + " " + strings.Join(args, " "),
			Output: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Repo is a git repository.
type Repo struct {
	root   string
	runner CommandRunner
}

// Option configures Open.
type Option func(*Repo)

// WithRunner sets the command runner. Tests use it to fake git.
func WithRunner(r CommandRunner) Option {
	return func(repo *Repo) { repo.runner = r }
}

// Open finds the repository containing dir.
func Open(ctx context.Context, dir string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	r := &Repo{runner: NewExecRunner()}
	for _, opt := range opts {
		opt(r)
	}

	root, err := r.runner.Run(ctx, abs, "git", "rev-parse", "--show-toplevel")
	if err != nil || root == "" {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotGitRepo)
	}
	r.root = filepath.Clean(root)
	return r, nil
}

// Root returns the top-level directory of the working tree.
func (r *Repo) Root() string {
	return r.root
}

// RemoteURL returns the URL of the named remote.
func (r *Repo) RemoteURL(ctx context.Context, remote string) (string, error) {
	url, err := r.runner.Run(ctx, r.root, "git", "remote", "get-url", remote)
	if err != nil {
		var gitErr *Error
		if errors.As(err, &gitErr) && strings.Contains(gitErr.Output, "No such remote") {
			return "", fmt.Errorf("%s: %w", remote, ErrNoRemote)
		}
		return "", &Error{Op: "get remote URL", Err: err}
	}
	if url == "" {
		return "", fmt.Errorf("%s: %w", remote, ErrNoRemote)
	}
	return url, nil
}

// FindRoot returns the repository root containing dir, or "" outside a
// repository. It fits config.ResolverConfig.GitRootFinder.
func FindRoot(dir string) (string, error) {
	r, err := Open(context.Background(), dir)
	if err != nil {
		return "", err
	}
	return r.Root(), nil
}
