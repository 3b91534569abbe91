// Package source provides ticket sources backed by GitHub and GitLab issues.
//
// Both implement proref.Source: issues are fetched as tickets and generated
// content is published back as issue comments.
//
// Implementations:
//   - GitHub: GitHub issues using go-github
//   - GitLab: GitLab issues using go-gitlab
//
// Issues carry no acceptance criteria field, so a section headed
// "Acceptance Criteria" in the issue body is split out of the description.
// The issue type comes from labels ("bug", "story", "spike", ...).
//
// Example usage:
//
//	src, _ := source.FromRemote("https://github.com/acme/shop.git", token)
//	engine, err := proref.New(ctx, cfg, proref.Deps{Source: src, ...})
package source
