package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/xanzy/go-gitlab"

	"github.com/randalmurphal/proref"
	prhttp "github.com/randalmurphal/proref/http"
	"github.com/randalmurphal/proref/ticket"
)

const gitlabPageSize = 100

var _ proref.Source = (*GitLab)(nil)

// GitLabConfig configures a GitLab issue source.
type GitLabConfig struct {
	Token string

	// BaseURL is the GitLab instance URL. Empty means gitlab.com.
	BaseURL string

	// Project is the numeric project id or "namespace/project" path.
	Project string

	// Labels restricts the backlog to issues carrying every label.
	Labels []string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GitLab reads tickets from GitLab issues.
type GitLab struct {
	client  *gitlab.Client
	project string
	labels  []string
	logger  *slog.Logger
}

// NewGitLab creates a GitLab source. token is a personal, project or group
// access token.
func NewGitLab(cfg GitLabConfig) (*GitLab, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("gitlab: %w", ErrTokenRequired)
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("gitlab: %w: project is required", ErrRepoRequired)
	}

	// Retries belong to the pipeline's retry policy.
	opts := []gitlab.ClientOptionFunc{gitlab.WithoutRetries()}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(cfg.HTTPClient))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GitLab{
		client:  client,
		project: cfg.Project,
		labels:  cfg.Labels,
		logger:  logger,
	}, nil
}

// Name returns "gitlab".
func (g *GitLab) Name() string { return "gitlab" }

// Fetch returns opened issues. q.IDs fetches exactly those issues (by IID);
// q.Expression is a free text search over title and description.
func (g *GitLab) Fetch(ctx context.Context, q proref.Query) ([]ticket.Raw, error) {
	if len(q.IDs) > 0 {
		return g.fetchIDs(ctx, q.IDs)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	opts := &gitlab.ListProjectIssuesOptions{
		State:       gitlab.Ptr("opened"),
		OrderBy:     gitlab.Ptr("updated_at"),
		Sort:        gitlab.Ptr("desc"),
		ListOptions: gitlab.ListOptions{PerPage: min(limit, gitlabPageSize)},
	}
	if len(g.labels) > 0 {
		opts.Labels = gitlab.Ptr(gitlab.LabelOptions(g.labels))
	}
	if expr := strings.TrimSpace(q.Expression); expr != "" {
		opts.Search = gitlab.Ptr(expr)
	}

	fetch := func(ctx context.Context, page int) ([]*gitlab.Issue, bool, error) {
		opts.Page = page + 1
		issues, resp, err := g.client.Issues.ListProjectIssues(g.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, false, normalize(ctx, "gitlab", "list issues", gitlabResponse(resp), err)
		}
		return issues, resp.NextPage != 0, nil
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
		raws = append(raws, g.toRaw(issue))
	}
	g.logger.Info("fetched gitlab issues", "project", g.project, "issues", len(raws))
	return raws, nil
}

func (g *GitLab) fetchIDs(ctx context.Context, ids []string) ([]ticket.Raw, error) {
	raws := make([]ticket.Raw, 0, len(ids))
	for _, id := range ids {
		n, err := issueNumber(id)
		if err != nil {
			return nil, err
		}
		issue, resp, err := g.client.Issues.GetIssue(g.project, n, gitlab.WithContext(ctx))
		if err != nil {
			return nil, normalize(ctx, "gitlab", "get issue "+id, gitlabResponse(resp), err)
		}
		raws = append(raws, g.toRaw(issue))
	}
	return raws, nil
}

// PublishComment adds a note to the issue and returns the note id.
func (g *GitLab) PublishComment(ctx context.Context, ticketID, markdown string) (string, error) {
	n, err := issueNumber(ticketID)
	if err != nil {
		return "", err
	}
	note, resp, err := g.client.Notes.CreateIssueNote(g.project, n,
		&gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(markdown)}, gitlab.WithContext(ctx))
	if err != nil {
		return "", normalize(ctx, "gitlab", "comment on "+ticketID, gitlabResponse(resp), err)
	}
	return strconv.Itoa(note.ID), nil
}

func (g *GitLab) toRaw(issue *gitlab.Issue) ticket.Raw {
	description, criteria := splitBody(issue.Description)
	raw := ticket.Raw{
		ID:                 ticketID(g.projectName(), issue.IID),
		Title:              issue.Title,
		Description:        description,
		AcceptanceCriteria: criteria,
		Status:             issue.State,
		IssueType:          issueType(issue.Labels),
		URL:                issue.WebURL,
	}
	if issue.UpdatedAt != nil {
		raw.UpdatedAt = *issue.UpdatedAt
	}
	return raw
}

// projectName is the last path segment of the project, used in ticket ids.
func (g *GitLab) projectName() string {
	return g.project[strings.LastIndex(g.project, "/")+1:]
}

func gitlabResponse(resp *gitlab.Response) *http.Response {
	if resp == nil {
		return nil
	}
	return resp.Response
}
