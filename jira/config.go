package jira

import (
	"time"
)

// AuthType represents the type of authentication to use.
type AuthType string

// Authentication types supported by the Jira client.
const (
	AuthAPIToken AuthType = "api_token" // Cloud: email + API token
	AuthOAuth2   AuthType = "oauth2"    // Cloud: OAuth 2.0 access/refresh token
	AuthBasic    AuthType = "basic"     // Server: username + password
	AuthPAT      AuthType = "pat"       // Server/DC: Personal Access Token
)

// DefaultMaxResults bounds a fetch when neither the query nor the config
// sets a limit.
const DefaultMaxResults = 150

// DefaultPageSize is the number of issues requested per search page.
const DefaultPageSize = 50

// Config holds the configuration for the Jira client and source.
type Config struct {
	// URL is the base URL of the Jira instance.
	// For Cloud: https://your-domain.atlassian.net
	// For Server: https://jira.your-company.com
	URL string `yaml:"url"`

	// APIVersion selects the REST API version. "auto" (default) tries the
	// Cloud search endpoints first and falls back to v2.
	APIVersion APIVersion `yaml:"api_version"`

	Auth AuthConfig `yaml:"auth"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// JQL is the default backlog query. When empty and Project is set, the
	// query is every open issue of the project, most recently updated first.
	JQL     string `yaml:"jql"`
	Project string `yaml:"project"`

	// MaxResults bounds the issues fetched per query.
	MaxResults int `yaml:"max_results"`

	// PageSize is the number of issues requested per search page.
	PageSize int `yaml:"page_size"`

	// AcceptanceCriteriaField is the custom field holding acceptance
	// criteria, e.g. "customfield_10042". Empty means none.
	AcceptanceCriteriaField string `yaml:"acceptance_criteria_field"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Type AuthType `yaml:"type"`

	// Email is required for api_token auth (Cloud).
	Email string `yaml:"email"`

	// Token is the API token (Cloud) or PAT (Server/DC).
	Token string `yaml:"token"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// OAuth2 configuration (Cloud only). The access token is refreshed with
	// RefreshToken when it expires.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	TokenURL     string `yaml:"token_url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIVersion: APIVersionAuto,
		Timeout:    30 * time.Second,
		MaxResults: DefaultMaxResults,
		PageSize:   DefaultPageSize,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigURLRequired
	}

	if c.Auth.Type == "" {
		return ErrConfigAuthTypeRequired
	}

	switch c.Auth.Type {
	case AuthAPIToken:
		if c.Auth.Email == "" || c.Auth.Token == "" {
			return ErrConfigAPITokenAuth
		}
	case AuthBasic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return ErrConfigBasicAuth
		}
	case AuthPAT:
		if c.Auth.Token == "" {
			return ErrConfigPATAuth
		}
	case AuthOAuth2:
		if c.Auth.AccessToken == "" && (c.Auth.ClientID == "" || c.Auth.ClientSecret == "" || c.Auth.RefreshToken == "") {
			return ErrConfigOAuth2Auth
		}
	default:
		return ErrConfigAuthTypeInvalid
	}

	if c.APIVersion != "" && c.APIVersion != APIVersionAuto &&
		c.APIVersion != APIVersionV2 && c.APIVersion != APIVersionV3 {
		return ErrConfigAPIVersionInvalid
	}
	if c.MaxResults < 0 || c.PageSize < 0 {
		return ErrConfigLimitInvalid
	}

	return nil
}

// BacklogJQL returns the configured default query.
func (c *Config) BacklogJQL() string {
	if c.JQL != "" {
		return c.JQL
	}
	if c.Project != "" {
		return "project = " + c.Project + " AND statusCategory != Done ORDER BY updated DESC"
	}
	return ""
}

// withDefaults fills zero limits.
func (c Config) withDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = APIVersionAuto
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
