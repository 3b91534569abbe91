package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/proref"
	"github.com/randalmurphal/proref/config"
	"github.com/randalmurphal/proref/similarity"
)

// backlog fakes Jira, the embeddings endpoint and the Anthropic API.
type backlog struct {
	srv *httptest.Server

	mu       sync.Mutex
	issues   map[string][2]string // key -> summary, description
	order    []string
	comments map[string][]string
	messages int
}

func newBacklog(t *testing.T) *backlog {
	b := &backlog{issues: make(map[string][2]string), comments: make(map[string][]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/3/search/jql", b.search)
	mux.HandleFunc("POST /rest/api/3/issue/{key}/comment", b.comment)
	mux.HandleFunc("POST /v1/embeddings", b.embed)
	mux.HandleFunc("POST /v1/messages", b.message)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backlog) put(key, summary, description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.issues[key]; !ok {
		b.order = append(b.order, key)
	}
	b.issues[key] = [2]string{summary, description}
}

func (b *backlog) commentsOn(key string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.comments[key]...)
}

func (b *backlog) messageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages
}

func (b *backlog) search(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	issues := make([]any, 0, len(b.order))
	for i, key := range b.order {
		issue := b.issues[key]
		issues = append(issues, map[string]any{
			"id":  fmt.Sprint(10000 + i),
			"key": key,
			"fields": map[string]any{
				"summary":     issue[0],
				"description": issue[1],
				"status":      map[string]any{"name": "To Do"},
				"issuetype":   map[string]any{"name": "Story"},
			},
		})
	}
	writeTestJSON(w, map[string]any{"isLast": true, "issues": issues})
}

func (b *backlog) comment(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	key := r.PathValue("key")
	b.comments[key] = append(b.comments[key], string(body))
	n := len(b.comments[key])
	b.mu.Unlock()
	writeTestJSON(w, map[string]any{"id": fmt.Sprintf("%s-c%d", key, n)})
}

// embed maps login tickets and everything else onto orthogonal vectors.
// Text mentioning "unembeddable" is rejected.
func (b *backlog) embed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	text := strings.ToLower(req.Input)
	if strings.Contains(text, "unembeddable") {
		w.WriteHeader(http.StatusBadRequest)
		writeTestJSON(w, map[string]any{"error": map[string]any{"message": "input rejected"}})
		return
	}
	vec := []float32{0, 1, 0}
	if strings.Contains(text, "login") {
		vec = []float32{1, 0, 0}
	}
	writeTestJSON(w, map[string]any{"data": []any{map[string]any{"index": 0, "embedding": vec}}})
}

func (b *backlog) message(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.messages++
	b.mu.Unlock()

	text := "- Which roles can sign in?\n- What happens after five failed attempts?"
	if bytes.Contains(body, []byte("TC-")) {
		text = "TC-1: Valid login\nPRE: a registered user\nSTEPS:\n1. Submit valid credentials\nEXPECTED: the dashboard opens\n---"
	}
	writeTestJSON(w, map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-test",
		"content":     []any{map[string]any{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	})
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// workspace is a project directory with its own global config.
type workspace struct {
	t      *testing.T
	dir    string
	global string
}

func newWorkspace(t *testing.T) *workspace {
	dir := t.TempDir()
	return &workspace{t: t, dir: dir, global: filepath.Join(dir, "home", "config.yaml")}
}

// configure points the workspace at b through PROREF_* variables.
func (ws *workspace) configure(b *backlog) {
	env := map[string]string{
		"source":               "jira",
		"jira.url":             b.srv.URL,
		"jira.auth":            "pat",
		"jira.token":           "jira-token",
		"jira.api_version":     "3",
		"jira.project":         "PROJ",
		"provider":             "anthropic",
		"anthropic.api_key":    "test-key",
		"anthropic.base_url":   b.srv.URL,
		"embedding.url":        b.srv.URL,
		"embedding.api_key":    "embed-key",
		"embedding.dimensions": "3",
		"retry.max_attempts":   "1",
	}
	for k, v := range env {
		ws.t.Setenv(config.EnvName(config.EnvPrefix, k), v)
	}
}

// run executes one command line.
func (ws *workspace) run(args ...string) (code int, stdout, stderr string) {
	ws.t.Helper()
	var out, errOut bytes.Buffer
	c := newCLI(&out, &errOut)
	c.resolver = func(errw io.Writer) *config.Resolver {
		return config.NewResolver(config.ResolverConfig{
			EnvPrefix:     config.EnvPrefix,
			GlobalPath:    ws.global,
			LocalName:     config.LocalName,
			Keys:          config.Keys,
			ErrWriter:     errw,
			GitRootFinder: func(string) (string, error) { return ws.dir, nil },
		})
	}
	c.saveConfig = func() config.SaveConfig {
		return config.SaveConfig{GlobalPath: ws.global, LocalName: config.LocalName, Keys: config.Keys}
	}
	code = c.execute(ws.t.Context(), args)
	return code, out.String(), errOut.String()
}

func seededBacklog(t *testing.T) (*workspace, *backlog) {
	b := newBacklog(t)
	b.put("PROJ-1", "Login page", "Users sign in with email and password.")
	b.put("PROJ-2", "Export CSV", "Managers export the monthly report.")
	b.put("PROJ-3", "Login with SSO", "Employees sign in through the company identity provider.")
	ws := newWorkspace(t)
	ws.configure(b)
	return ws, b
}

func TestRunThenPublish(t *testing.T) {
	ws, b := seededBacklog(t)

	code, out, errOut := ws.run("run")
	require.Equal(t, 0, code, "stdout:\n%s\nstderr:\n%s", out, errOut)
	assert.Contains(t, out, "fetch: 3 ok, 0 skipped, 0 failed")
	assert.Contains(t, out, "embed: 3 ok")
	assert.Contains(t, out, "generate:questions: 3 ok")
	assert.Contains(t, out, "generate:test_cases: 3 ok")
	assert.Empty(t, b.commentsOn("PROJ-1"), "run publishes only with publish_on_run")
	assert.Equal(t, 6, b.messageCount(), "one completion per ticket and artifact kind")

	code, out, _ = ws.run("status", "PROJ-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Ticket:      PROJ-1")
	assert.Contains(t, out, "Embed:       current")
	assert.Contains(t, out, "Questions:   generated (unpublished)")

	code, out, errOut = ws.run("publish", "questions")
	require.Equal(t, 0, code, "stdout:\n%s\nstderr:\n%s", out, errOut)
	assert.Contains(t, out, "publish:questions: 3 ok")
	comments := b.commentsOn("PROJ-1")
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0], "Which roles can sign in?")

	// Published artifacts are never posted twice. Naming one explicitly
	// reports it as a failure.
	code, out, _ = ws.run("publish", "questions")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "publish:questions: 0 ok")
	code, out, _ = ws.run("publish", "questions", "--force", "--ticket", "PROJ-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "  PROJ-1: ")
	assert.Len(t, b.commentsOn("PROJ-1"), 1)

	code, out, _ = ws.run("status", "PROJ-1", "--json")
	require.Equal(t, 0, code)
	var st struct {
		TicketID string            `json:"ticketId"`
		Publish  map[string]string `json:"publish"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "PROJ-1", st.TicketID)
	assert.Equal(t, "published", st.Publish["questions"])
	assert.Equal(t, "unpublished", st.Publish["test_cases"])
}

func TestEditedTicketGoesStale(t *testing.T) {
	ws, b := seededBacklog(t)

	code, _, _ := ws.run("run")
	require.Equal(t, 0, code)

	b.put("PROJ-2", "Export CSV", "Managers export the monthly report, including refunds.")
	code, _, _ = ws.run("fetch")
	require.Equal(t, 0, code)

	code, out, _ := ws.run("status", "--stage", "embed", "--state", "stale")
	require.Equal(t, 0, code)
	assert.Equal(t, "PROJ-2\n", out)

	code, out, _ = ws.run("status", "--stage", "generate", "--kind", "testcases", "--state", "stale")
	require.Equal(t, 0, code)
	assert.Equal(t, "PROJ-2\n", out)

	code, out, _ = ws.run("status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "current=2 stale=1")
	assert.Contains(t, out, "Quality:")

	// Only the edited ticket is embedded again.
	code, out, _ = ws.run("embed")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "embed: 1 ok")
}

func TestPartialBatchExitCode(t *testing.T) {
	ws, b := seededBacklog(t)
	b.put("PROJ-4", "Broken", "This one is unembeddable.")

	code, _, _ := ws.run("fetch")
	require.Equal(t, 0, code)

	code, out, _ := ws.run("embed")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "embed: 3 ok, 0 skipped, 1 failed")
	assert.Contains(t, out, "  PROJ-4: ")

	code, out, _ = ws.run("status", "PROJ-4")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Embed:       none")
}

func TestRelated(t *testing.T) {
	ws, _ := seededBacklog(t)

	code, _, _ := ws.run("run")
	require.Equal(t, 0, code)

	code, out, _ := ws.run("related", "PROJ-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "PROJ-3")
	assert.NotContains(t, out, "PROJ-2")

	code, out, _ = ws.run("related", "PROJ-1", "--min", "0", "--json")
	require.Equal(t, 0, code)
	var res similarity.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "PROJ-3", res.Matches[0].TicketID)
	assert.InDelta(t, 1.0, res.Matches[0].Similarity, 1e-9)

	code, out, _ = ws.run("related", "PROJ-1", "--refresh")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "1 links stored for PROJ-1")

	code, _, errOut := ws.run("related", "PROJ-404")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "PROJ-404")
}

func TestMatch(t *testing.T) {
	ws, _ := seededBacklog(t)

	code, _, _ := ws.run("run")
	require.Equal(t, 0, code)

	code, out, _ := ws.run("match", "how", "does", "login", "work?")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "PROJ-1")
	assert.Contains(t, out, "Login with SSO")
	assert.NotContains(t, out, "PROJ-2")

	code, out, _ = ws.run("match", "login", "-k", "1", "--json")
	require.Equal(t, 0, code)
	var res proref.TextMatch
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "PROJ-1", res.Matches[0].ID)
	assert.InDelta(t, 1.0, res.Matches[0].Similarity, 1e-9)

	code, _, errOut := ws.run("match", "login", "--min", "2")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--min")
}

func TestStagesWithoutSource(t *testing.T) {
	ws := newWorkspace(t)

	code, out, errOut := ws.run("fetch")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "fetch: failed")
	assert.NotEmpty(t, errOut)

	// Nothing fetched yet: status still works.
	code, out, _ = ws.run("status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "no current scores")
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{name: "unknown kind", args: []string{"generate", "bogus"}, want: "unknown artifact kind"},
		{name: "missing kind", args: []string{"publish"}, want: "accepts 1 arg"},
		{name: "bad min", args: []string{"related", "PROJ-1", "--min", "2"}, want: "--min"},
		{name: "bad stage", args: []string{"status", "--stage", "deploy"}, want: "unknown stage"},
		{name: "invalid setting", args: []string{"status"}, env: map[string]string{"PROREF_WORKERS": "none"}, want: "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			ws := newWorkspace(t)
			code, _, errOut := ws.run(tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestConfigCommands(t *testing.T) {
	ws := newWorkspace(t)

	code, out, errOut := ws.run("config", "set", "jira.project", "PROJ")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Set jira.project in .proref.yaml")
	data, err := os.ReadFile(filepath.Join(ws.dir, config.LocalName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "project: PROJ")

	code, out, _ = ws.run("config", "get", "jira.project")
	require.Equal(t, 0, code)
	assert.Equal(t, "PROJ\n", out)

	code, _, errOut = ws.run("config", "set", "jira.token", "s3cret")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "secret")

	code, _, _ = ws.run("config", "set", "--global", "jira.token", "s3cret")
	require.Equal(t, 0, code)

	code, out, _ = ws.run("config", "get")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "jira.token")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "global")

	code, out, _ = ws.run("config", "get", "jira.token", "--show-secrets")
	require.Equal(t, 0, code)
	assert.Equal(t, "s3cret\n", out)

	code, _, _ = ws.run("config", "unset", "jira.token")
	require.Equal(t, 0, code)
	code, out, _ = ws.run("config", "get", "jira.token")
	require.Equal(t, 0, code)
	assert.Equal(t, "\n", out)

	code, _, errOut = ws.run("config", "get", "no.such.key")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown config key")
}

func TestRecordKeepsWorstCode(t *testing.T) {
	c := &cli{}
	c.record(0)
	assert.Equal(t, 0, c.code)
	c.record(2)
	assert.Equal(t, 2, c.code)
	c.record(0)
	assert.Equal(t, 2, c.code)
	c.record(1)
	assert.Equal(t, 1, c.code)
	c.record(2)
	assert.Equal(t, 1, c.code)
}
