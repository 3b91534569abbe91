// Package git reads repository facts from the git command line: the
// repository root and remote URLs. proref uses them to find the project
// config file and to pick the issue tracker of the repository.
//
// Core types:
//   - Repo: a repository opened from any directory inside it
//   - CommandRunner: executes git (with a fake for testing)
//
// Example usage:
//
//	repo, err := git.Open(ctx, ".")
//	if err != nil {
//		return err
//	}
//	url, err := repo.RemoteURL(ctx, "origin")
package git
