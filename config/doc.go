// Package config resolves proref's configuration.
//
// Values are layered, highest priority first:
//  1. Command-line flags
//  2. Environment variables (PROREF_JIRA_URL for "jira.url")
//  3. Local config (.proref.yaml in the git root, shared with the team)
//  4. Global config (~/.config/proref/config.yaml)
//  5. Built-in defaults (Keys)
//
// Config files nest dotted keys:
//
//	source: jira
//	jira:
//	  url: https://example.atlassian.net
//	  project: PROJ
//	related:
//	  k: 5
//	  min: 0.8
//
// Load turns the resolved strings into a typed Settings value that the
// command passes to constructors explicitly:
//
//	resolved := config.NewProrefResolver().ResolveWithFlags(flags)
//	settings, err := config.Load(resolved)
//
// Every resolved value remembers its Source, which `proref config get`
// prints. Secret keys (tokens, passwords) are refused in the local file.
package config
