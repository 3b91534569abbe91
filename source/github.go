package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/randalmurphal/proref"
	prhttp "github.com/randalmurphal/proref/http"
	"github.com/randalmurphal/proref/ticket"
)

// DefaultMaxResults bounds a fetch when the query sets no limit.
const DefaultMaxResults = 100

const githubPageSize = 100

var _ proref.Source = (*GitHub)(nil)

// GitHubConfig configures a GitHub issue source.
type GitHubConfig struct {
	Token string
	Owner string
	Repo  string

	// BaseURL is the GitHub Enterprise URL. Empty means github.com.
	BaseURL string

	// Labels restricts the backlog to issues carrying every label.
	Labels []string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GitHub reads tickets from GitHub issues.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	labels []string
	logger *slog.Logger
}

// NewGitHub creates a GitHub source. The token is a personal access token
// or a GitHub App token.
func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: %w", ErrTokenRequired)
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github: %w: owner and repo are required", ErrRepoRequired)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github enterprise url: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		labels: cfg.Labels,
		logger: logger,
	}, nil
}

// Name returns "github".
func (g *GitHub) Name() string { return "github" }

// Fetch returns open issues. q.IDs fetches exactly those issues;
// q.Expression is a GitHub issue search query scoped to the repository.
func (g *GitHub) Fetch(ctx context.Context, q proref.Query) ([]ticket.Raw, error) {
	if len(q.IDs) > 0 {
		return g.fetchIDs(ctx, q.IDs)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	perPage := min(limit, githubPageSize)

	var fetch prhttp.PageFetcher[*github.Issue]
	if expr := strings.TrimSpace(q.Expression); expr != "" {
		query := fmt.Sprintf("repo:%s/%s is:issue %s", g.owner, g.repo, expr)
		fetch = func(ctx context.Context, page int) ([]*github.Issue, bool, error) {
			res, resp, err := g.client.Search.Issues(ctx, query, &github.SearchOptions{
				ListOptions: github.ListOptions{Page: page + 1, PerPage: perPage},
			})
			if err != nil {
				return nil, false, normalize(ctx, "github", "search issues", responseOf(resp), err)
			}
			return res.Issues, resp.NextPage != 0, nil
		}
	} else {
		fetch = func(ctx context.Context, page int) ([]*github.Issue, bool, error) {
			issues, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, &github.IssueListByRepoOptions{
				State:       "open",
				Labels:      g.labels,
				Sort:        "updated",
				Direction:   "desc",
				ListOptions: github.ListOptions{Page: page + 1, PerPage: perPage},
			})
			if err != nil {
				return nil, false, normalize(ctx, "github", "list issues", responseOf(resp), err)
			}
			return issues, resp.NextPage != 0, nil
		}
	}

	var raws []ticket.Raw
	it := prhttp.NewPageIterator(fetch, 0)
	for len(raws) < limit {
		issue, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		// The issues API lists pull requests too.
		if issue.IsPullRequest() {
			continue
		}
		raws = append(raws, g.toRaw(issue))
	}
	g.logger.Info("fetched github issues", "repo", g.owner+"/"+g.repo, "issues", len(raws))
	return raws, nil
}

func (g *GitHub) fetchIDs(ctx context.Context, ids []string) ([]ticket.Raw, error) {
	raws := make([]ticket.Raw, 0, len(ids))
	for _, id := range ids {
		n, err := issueNumber(id)
		if err != nil {
			return nil, err
		}
		issue, resp, err := g.client.Issues.Get(ctx, g.owner, g.repo, n)
		if err != nil {
			return nil, normalize(ctx, "github", "get issue "+id, responseOf(resp), err)
		}
		raws = append(raws, g.toRaw(issue))
	}
	return raws, nil
}

// PublishComment comments on the issue and returns the comment id.
func (g *GitHub) PublishComment(ctx context.Context, ticketID, markdown string) (string, error) {
	n, err := issueNumber(ticketID)
	if err != nil {
		return "", err
	}
	c, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, n, &github.IssueComment{
		Body: github.String(markdown),
	})
	if err != nil {
		return "", normalize(ctx, "github", "comment on "+ticketID, responseOf(resp), err)
	}
	return strconv.FormatInt(c.GetID(), 10), nil
}

func (g *GitHub) toRaw(issue *github.Issue) ticket.Raw {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	description, criteria := splitBody(issue.GetBody())
	return ticket.Raw{
		ID:                 ticketID(g.repo, issue.GetNumber()),
		Title:              issue.GetTitle(),
		Description:        description,
		AcceptanceCriteria: criteria,
		Status:             issue.GetState(),
		IssueType:          issueType(labels),
		URL:                issue.GetHTMLURL(),
		UpdatedAt:          issue.GetUpdatedAt().Time,
	}
}

func responseOf(resp *github.Response) *http.Response {
	if resp == nil {
		return nil
	}
	return resp.Response
}
