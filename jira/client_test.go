package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &Config{
		URL: srv.URL,
		Auth: AuthConfig{
			Type:  AuthAPIToken,
			Email: "user@example.com",
			Token: "secret",
		},
		Project: "PROJ",
	}
	for _, m := range mutate {
		m(cfg)
	}
	c, err := NewClient(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func issuesJSON(from, to int) []map[string]any {
	var out []map[string]any
	for i := from; i <= to; i++ {
		out = append(out, map[string]any{
			"id":  strconv.Itoa(i),
			"key": fmt.Sprintf("PROJ-%d", i),
			"fields": map[string]any{
				"summary": fmt.Sprintf("Issue %d", i),
				"updated": "2025-01-15T10:30:00.000+0000",
			},
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchTokenPagination(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/search/jql", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			JQL           string   `json:"jql"`
			Fields        []string `json:"fields"`
			MaxResults    int      `json:"maxResults"`
			NextPageToken string   `json:"nextPageToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "project = PROJ", body.JQL)
		assert.Contains(t, body.Fields, "customfield_10042")
		assert.Equal(t, 2, body.MaxResults)

		switch body.NextPageToken {
		case "":
			writeJSON(w, map[string]any{"issues": issuesJSON(1, 2), "nextPageToken": "page-2", "isLast": false})
		case "page-2":
			writeJSON(w, map[string]any{"issues": issuesJSON(3, 3), "isLast": true})
		default:
			t.Errorf("unexpected token %q", body.NextPageToken)
		}
	})

	c := newTestClient(t, mux, func(cfg *Config) {
		cfg.PageSize = 2
		cfg.AcceptanceCriteriaField = "customfield_10042"
	})

	issues, err := c.Search(t.Context(), "project = PROJ", 0)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "PROJ-3", issues[2].Key)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchFallsBackWhenEndpointGone(t *testing.T) {
	var gone, legacy atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/search/jql", func(w http.ResponseWriter, _ *http.Request) {
		gone.Add(1)
		w.WriteHeader(http.StatusGone)
		writeJSON(w, map[string]any{"errorMessages": []string{"endpoint removed"}})
	})
	mux.HandleFunc("GET /rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		legacy.Add(1)
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		if startAt == 0 {
			writeJSON(w, map[string]any{"startAt": 0, "total": 3, "issues": issuesJSON(1, 2)})
			return
		}
		writeJSON(w, map[string]any{"startAt": startAt, "total": 3, "issues": issuesJSON(3, 3)})
	})

	c := newTestClient(t, mux, func(cfg *Config) { cfg.PageSize = 2 })

	issues, err := c.Search(t.Context(), "project = PROJ", 0)
	require.NoError(t, err)
	assert.Len(t, issues, 3)

	// The retired endpoint is not asked again.
	_, err = c.Search(t.Context(), "project = PROJ", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gone.Load())
	assert.Equal(t, int32(4), legacy.Load())
}

func TestSearchStopsAtLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/search/jql", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"issues": issuesJSON(1, 5), "nextPageToken": "more"})
	})

	c := newTestClient(t, mux)

	issues, err := c.Search(t.Context(), "project = PROJ", 3)
	require.NoError(t, err)
	assert.Len(t, issues, 3)
}

func TestSearchRequiresQuery(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Search(t.Context(), "  ", 0)
	require.ErrorIs(t, err, ErrNoQuery)
	assert.Equal(t, prerrors.KindValidation, prerrors.Classify(err))
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		header   map[string]string
		wantIs   error
		wantKind prerrors.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, nil, prhttp.ErrUnauthorized, prerrors.KindPermanent},
		{"forbidden", http.StatusForbidden, nil, prhttp.ErrForbidden, prerrors.KindPermanent},
		{"server error", http.StatusBadGateway, nil, prhttp.ErrServerError, prerrors.KindTransient},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "7"}, prhttp.ErrRateLimited, prerrors.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				writeJSON(w, map[string]any{"errorMessages": []string{"nope"}})
			}))

			_, err := c.Search(t.Context(), "project = PROJ", 0)
			require.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantKind, prerrors.Classify(err))
		})
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Search(t.Context(), "project = PROJ", 0)

	var rl *prhttp.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, "jira", rl.Service)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		StatusCode: http.StatusBadRequest,
		Errors:     map[string]string{"summary": "required", "body": "too long"},
	}
	assert.Equal(t, "jira api error (400): body: too long", err.Error())
	assert.ErrorIs(t, err, prhttp.ErrBadRequest)
}

func TestAddCommentRejectedFields(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/issue/PROJ-7/comment", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"errorMessages": []string{}, "errors": map[string]string{"comment": "Comment body too long"}})
	})

	c := newTestClient(t, mux, func(cfg *Config) { cfg.APIVersion = APIVersionV3 })

	_, err := c.AddComment(t.Context(), "PROJ-7", "too much")
	var verr *prhttp.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "jira", verr.Service)
	assert.Equal(t, map[string]string{"comment": "Comment body too long"}, verr.Fields)
	assert.Equal(t, prerrors.KindValidation, prerrors.Classify(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAddCommentCloud(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/issue/PROJ-7/comment", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Body ADFDocument `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, ADFNodeDoc, req.Body.Type)
		assert.Equal(t, 1, req.Body.Version)
		require.NotEmpty(t, req.Body.Content)
		assert.Equal(t, ADFNodeHeading, req.Body.Content[0].Type)

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": "10001"})
	})

	c := newTestClient(t, mux, func(cfg *Config) { cfg.APIVersion = APIVersionV3 })

	comment, err := c.AddComment(t.Context(), "PROJ-7", "### Questions\n\n1. What about SSO?")
	require.NoError(t, err)
	assert.Equal(t, "10001", comment.ID)
}

func TestAddCommentDetectsServer(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/2/serverInfo", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"deploymentType": "Server"})
	})
	mux.HandleFunc("POST /rest/api/2/issue/PROJ-7/comment", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = req.Body
		writeJSON(w, map[string]any{"id": "42"})
	})

	c := newTestClient(t, mux, func(cfg *Config) {
		cfg.Auth = AuthConfig{Type: AuthPAT, Token: "pat"}
	})

	comment, err := c.AddComment(t.Context(), "PROJ-7", "### Questions\n\n**Login**")
	require.NoError(t, err)
	assert.Equal(t, "42", comment.ID)
	assert.Equal(t, "h3. Questions\n\n*Login*", got)
}

func TestAddCommentInvalidKey(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.AddComment(t.Context(), "not a key", "hi")
	require.ErrorIs(t, err, ErrIssueKeyInvalid)
}

func TestAuthHeaders(t *testing.T) {
	tests := []struct {
		name string
		auth AuthConfig
		want string
	}{
		{"api token", AuthConfig{Type: AuthAPIToken, Email: "a@b.c", Token: "t"}, "Basic " + basic("a@b.c", "t")},
		{"basic", AuthConfig{Type: AuthBasic, Username: "admin", Password: "pw"}, "Basic " + basic("admin", "pw")},
		{"pat", AuthConfig{Type: AuthPAT, Token: "pat"}, "Bearer pat"},
		{"oauth2", AuthConfig{Type: AuthOAuth2, AccessToken: "access"}, "Bearer access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				writeJSON(w, map[string]any{"issues": []any{}, "isLast": true})
			}), func(cfg *Config) { cfg.Auth = tt.auth })

			_, err := c.Search(t.Context(), "project = PROJ", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
