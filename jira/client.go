package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"slices"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	prhttp "github.com/randalmurphal/proref/http"
)

// atlassianTokenURL is the Jira Cloud OAuth 2.0 token endpoint.
const atlassianTokenURL = "https://auth.atlassian.com/oauth/token"

// Client provides access to the Jira REST API endpoints used by the
// pipeline: issue search and comments.
//
// A Client makes one attempt per request. Callers retry transient
// failures, which unwrap to the http package sentinels.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	mu sync.Mutex
	// version is the API version in use once known: configured, detected
	// or learned from the search endpoint that answered.
	version APIVersion
	// retired counts the leading search endpoints that returned 410 Gone.
	retired int
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. With OAuth2 auth its transport
// is wrapped to add the bearer token.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Jira client.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg.withDefaults(),
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.cfg.Timeout}
	}
	if c.cfg.APIVersion != APIVersionAuto {
		c.version = c.cfg.APIVersion
	}

	if c.cfg.Auth.Type == AuthOAuth2 {
		base := *c.httpClient
		base.Transport = &oauth2.Transport{Source: c.tokenSource(), Base: c.httpClient.Transport}
		c.httpClient = &base
	}
	return c, nil
}

// tokenSource returns the OAuth2 bearer token source. With a refresh token
// and client credentials expired tokens are refreshed; otherwise the access
// token is used as is.
func (c *Client) tokenSource() oauth2.TokenSource {
	a := c.cfg.Auth
	tok := &oauth2.Token{AccessToken: a.AccessToken, RefreshToken: a.RefreshToken, TokenType: "Bearer"}
	if a.RefreshToken == "" || a.ClientID == "" {
		return oauth2.StaticTokenSource(tok)
	}
	tokenURL := a.TokenURL
	if tokenURL == "" {
		tokenURL = atlassianTokenURL
	}
	oc := &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	return oc.TokenSource(context.Background(), tok)
}

// BaseURL returns the instance URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// Search
// =============================================================================

type searchEndpoint struct {
	path       string
	method     string
	version    APIVersion
	tokenPaged bool
}

// Search endpoints in order of preference. Jira Cloud retires the older
// ones with 410 Gone.
var (
	searchJQL = searchEndpoint{"/rest/api/3/search/jql", http.MethodPost, APIVersionV3, true}
	searchV3  = searchEndpoint{"/rest/api/3/search", http.MethodGet, APIVersionV3, false}
	searchV2  = searchEndpoint{"/rest/api/2/search", http.MethodGet, APIVersionV2, false}
)

func (c *Client) searchEndpoints() []searchEndpoint {
	switch c.cfg.APIVersion {
	case APIVersionV2:
		return []searchEndpoint{searchV2}
	case APIVersionV3:
		return []searchEndpoint{searchJQL, searchV3}
	default:
		return []searchEndpoint{searchJQL, searchV3, searchV2}
	}
}

// Search returns up to limit issues matching jql. Endpoints that answer
// 410 Gone are skipped for the rest of the client's life.
func (c *Client) Search(ctx context.Context, jql string, limit int) ([]Issue, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, ErrNoQuery
	}
	if limit <= 0 {
		limit = c.cfg.MaxResults
	}

	endpoints := c.searchEndpoints()
	c.mu.Lock()
	start := min(c.retired, len(endpoints))
	c.mu.Unlock()

	for i := start; i < len(endpoints); i++ {
		ep := endpoints[i]
		issues, err := c.searchWith(ctx, ep, jql, limit)
		if errors.Is(err, ErrEndpointGone) {
			c.logger.Debug("jira search endpoint retired, trying next", "endpoint", ep.path)
			c.mu.Lock()
			c.retired = max(c.retired, i+1)
			c.mu.Unlock()
			continue
		}
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.version = ep.version
		c.mu.Unlock()
		c.logger.Debug("jira search", "endpoint", ep.path, "issues", len(issues))
		return issues, nil
	}
	return nil, fmt.Errorf("jira search: every endpoint retired: %w", ErrEndpointGone)
}

func (c *Client) searchWith(ctx context.Context, ep searchEndpoint, jql string, limit int) ([]Issue, error) {
	var (
		startAt   int
		token     string
		remaining = limit
	)

	fetch := func(ctx context.Context, _ int) ([]Issue, bool, error) {
		size := min(c.cfg.PageSize, remaining)
		page, err := c.searchPage(ctx, ep, jql, size, startAt, token)
		if err != nil {
			return nil, false, err
		}
		issues := page.Issues
		if len(issues) > remaining {
			issues = issues[:remaining]
		}
		remaining -= len(issues)
		startAt += len(issues)

		var more bool
		if ep.tokenPaged {
			token = page.NextPageToken
			more = token != "" && (page.IsLast == nil || !*page.IsLast)
		} else {
			more = startAt < page.Total
		}
		return issues, more && len(issues) > 0 && remaining > 0, nil
	}

	return prhttp.NewPageIterator[Issue](fetch, 0).All(ctx)
}

func (c *Client) searchPage(ctx context.Context, ep searchEndpoint, jql string, size, startAt int, token string) (*searchResponse, error) {
	var (
		query url.Values
		body  any
	)
	if ep.method == http.MethodPost {
		req := map[string]any{
			"jql":        jql,
			"fields":     c.fields(),
			"maxResults": size,
		}
		if token != "" {
			req["nextPageToken"] = token
		}
		body = req
	} else {
		query = url.Values{
			"jql":        {jql},
			"fields":     {strings.Join(c.fields(), ",")},
			"maxResults": {strconv.Itoa(size)},
			"startAt":    {strconv.Itoa(startAt)},
		}
	}

	var page searchResponse
	if err := c.do(ctx, ep.method, ep.path, query, body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// fields lists the issue fields requested from search.
func (c *Client) fields() []string {
	if c.cfg.AcceptanceCriteriaField == "" {
		return searchFields
	}
	return append(slices.Clone(searchFields), c.cfg.AcceptanceCriteriaField)
}

// =============================================================================
// Comments
// =============================================================================

// AddComment posts markdown as a comment on key. Cloud (v3) receives an
// ADF document, Server (v2) receives Wiki Markup.
func (c *Client) AddComment(ctx context.Context, key, markdown string) (*Comment, error) {
	if !ValidateIssueKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrIssueKeyInvalid, key)
	}

	version := c.apiVersion(ctx)
	var body any
	if version == APIVersionV2 {
		body = MarkdownToWiki(markdown)
	} else {
		body = MarkdownToADF(markdown)
	}

	var comment Comment
	path := c.apiPath(version, "/issue/"+key+"/comment")
	if err := c.do(ctx, http.MethodPost, path, nil, &addCommentRequest{Body: body}, &comment); err != nil {
		return nil, fmt.Errorf("comment on %s: %w", key, err)
	}
	return &comment, nil
}

// apiVersion returns the version in use, detecting it from serverInfo when
// neither configuration nor a previous search settled it.
func (c *Client) apiVersion(ctx context.Context) APIVersion {
	c.mu.Lock()
	v := c.version
	c.mu.Unlock()
	if v != "" {
		return v
	}

	v = APIVersionV3
	var info struct {
		DeploymentType string `json:"deploymentType"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/serverInfo", nil, nil, &info); err != nil {
		c.logger.Debug("jira deployment detection failed, assuming cloud", "error", err)
		return v
	}
	if info.DeploymentType != "" && info.DeploymentType != "Cloud" {
		v = APIVersionV2
	}

	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
	return v
}

func (c *Client) apiPath(version APIVersion, endpoint string) string {
	return fmt.Sprintf("/rest/api/%s%s", strings.TrimPrefix(string(version), "v"), endpoint)
}

// =============================================================================
// Transport
// =============================================================================

// do sends one request and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("jira %s %s: %w: %w", method, path, prhttp.ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	return req, nil
}

// setAuth sets the authentication header based on config. OAuth2 tokens
// are added by the client's transport.
func (c *Client) setAuth(req *http.Request) {
	a := c.cfg.Auth
	switch a.Type {
	case AuthAPIToken:
		req.Header.Set("Authorization", "Basic "+basic(a.Email, a.Token))
	case AuthBasic:
		req.Header.Set("Authorization", "Basic "+basic(a.Username, a.Password))
	case AuthPAT:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

func basic(user, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + secret))
}
