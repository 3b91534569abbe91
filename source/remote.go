package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/proref"
)

// Platform names an issue tracker host.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// DetectPlatform determines the issue tracker from a git remote URL.
func DetectPlatform(remoteURL string) (Platform, error) {
	remoteURL = strings.ToLower(remoteURL)

	if strings.Contains(remoteURL, "github") {
		return PlatformGitHub, nil
	}
	if strings.Contains(remoteURL, "gitlab") {
		return PlatformGitLab, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPlatform, remoteURL)
}

// ParseRepoFromURL extracts owner and repo from a git remote URL. For
// GitLab subgroups the owner is the full namespace path.
func ParseRepoFromURL(remoteURL string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(remoteURL, "git@"):
		// git@github.com:owner/repo.git
		_, after, ok := strings.Cut(remoteURL, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid SSH URL format: %s", remoteURL)
		}
		path = after
	default:
		// https://github.com/owner/repo.git
		u := strings.TrimPrefix(strings.TrimPrefix(remoteURL, "https://"), "http://")
		_, after, ok := strings.Cut(u, "/")
		if !ok {
			return "", "", fmt.Errorf("invalid URL format: %s", remoteURL)
		}
		path = after
	}

	path = strings.Trim(strings.TrimSuffix(path, ".git"), "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("invalid repository path: %s", remoteURL)
	}
	return path[:i], path[i+1:], nil
}

// hostURL returns the scheme and host of an HTTP(S) remote, or "" for SSH
// remotes and the public hosts.
func hostURL(remoteURL string) string {
	if strings.HasPrefix(remoteURL, "git@") {
		host, _, _ := strings.Cut(strings.TrimPrefix(remoteURL, "git@"), ":")
		if host == "github.com" || host == "gitlab.com" {
			return ""
		}
		return "https://" + host
	}
	scheme := "https://"
	if strings.HasPrefix(remoteURL, "http://") {
		scheme = "http://"
	}
	u := strings.TrimPrefix(strings.TrimPrefix(remoteURL, "https://"), "http://")
	host, _, _ := strings.Cut(u, "/")
	if host == "github.com" || host == "gitlab.com" {
		return ""
	}
	return scheme + host
}

// Remote describes a repository whose issues are the backlog.
type Remote struct {
	URL   string
	Token string

	// Platform overrides detection for self-hosted hosts whose name
	// mentions neither github nor gitlab.
	Platform Platform

	Labels []string
	Logger *slog.Logger
}

// Open creates the source for r.
func Open(r Remote) (proref.Source, error) {
	platform := r.Platform
	if platform == "" {
		var err error
		if platform, err = DetectPlatform(r.URL); err != nil {
			return nil, err
		}
	}
	owner, repo, err := ParseRepoFromURL(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}

	switch platform {
	case PlatformGitHub:
		gh, err := NewGitHub(GitHubConfig{
			Token: r.Token, Owner: owner, Repo: repo, BaseURL: hostURL(r.URL),
			Labels: r.Labels, Logger: r.Logger,
		})
		if err != nil {
			return nil, err
		}
		return gh, nil
	case PlatformGitLab:
		gl, err := NewGitLab(GitLabConfig{
			Token: r.Token, Project: owner + "/" + repo, BaseURL: hostURL(r.URL),
			Labels: r.Labels, Logger: r.Logger,
		})
		if err != nil {
			return nil, err
		}
		return gl, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
}

// FromRemote creates the source for the repository at remoteURL.
func FromRemote(remoteURL, token string) (proref.Source, error) {
	return Open(Remote{URL: remoteURL, Token: token})
}
