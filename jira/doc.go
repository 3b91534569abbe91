// Package jira is the Jira ticket source.
//
// It fetches issues by JQL and posts generated content back as comments.
// Both Jira Cloud (API v3) and Jira Server/Data Center (API v2) are
// supported. With api_version "auto" the client tries the Cloud search
// endpoints first and falls back when Jira answers 410 Gone.
//
// # Authentication
//
//   - API Token (Cloud): Email + API token
//   - Personal Access Token (Server/DC): PAT token
//   - Basic Auth (legacy): Username + password
//   - OAuth 2.0 (Cloud): access token, refreshed with client credentials
//
// # Usage
//
//	cfg := &jira.Config{
//		URL:     "https://your-domain.atlassian.net",
//		Project: "PROJ",
//		Auth: jira.AuthConfig{
//			Type:  jira.AuthAPIToken,
//			Email: "you@example.com",
//			Token: "your-api-token",
//		},
//	}
//
//	client, err := jira.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	engine, err := proref.New(proref.Config{Source: jira.NewSource(client), ...})
//
// # Rich Text
//
// Cloud descriptions arrive as Atlassian Document Format (ADF) and are
// flattened with ADFToText. Server descriptions are Wiki Markup and are
// converted with WikiToMarkdown. Comments go out as MarkdownToADF or
// MarkdownToWiki depending on the API version.
//
// # Errors
//
// Failures unwrap to the proref/http sentinels, so the engine's retry
// classification works without knowing about Jira:
//
//	if errors.Is(err, http.ErrRateLimited) {
//		// Rate limited, check Retry-After
//	}
package jira
