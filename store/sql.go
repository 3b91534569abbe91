package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/randalmurphal/proref/fingerprint"
	"github.com/randalmurphal/proref/ticket"
)

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// SQLOption configures OpenSQL.
type SQLOption func(*SQLStore)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) SQLOption {
	return func(s *SQLStore) { s.logger = l }
}

// OpenSQL opens or creates the database at path and applies the schema.
// The parent directory is created if needed. ":memory:" opens a private
// in-memory database.
func OpenSQL(ctx context.Context, path string, opts ...SQLOption) (*SQLStore, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_txlock=immediate", path)
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLStore{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("store opened", "path", path)
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	var tables int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tables == 0 {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", v, schemaVersion)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*ticket.Record, error) {
	recs, err := load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, notFound(id)
	}
	return recs[0], nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context) ([]*ticket.Record, error) {
	return load(ctx, s.db, "")
}

// Update implements Store. The read and the write share one immediate
// transaction, so concurrent updates to the same ticket apply in turn.
func (s *SQLStore) Update(ctx context.Context, id string, fn UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	recs, err := load(ctx, tx, id)
	if err != nil {
		return err
	}
	rec := &ticket.Record{}
	if len(recs) > 0 {
		rec = recs[0]
	}

	if err := fn(rec); err != nil {
		return err
	}
	if rec.Ticket == nil {
		return nil
	}
	if rec.Ticket.ID != id {
		return fmt.Errorf("update %s: record carries ticket %s", id, rec.Ticket.ID)
	}

	if err := write(ctx, tx, rec); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	return nil
}

// ReplaceLinks implements Store.
func (s *SQLStore) ReplaceLinks(ctx context.Context, fromID string, links []ticket.RelatedLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin links %s: %w", fromID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM related_links WHERE from_id = ?", fromID); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	for _, l := range links {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO related_links(from_id, to_id, similarity, model, computed_at) VALUES(?, ?, ?, ?, ?)`,
			fromID, l.ToID, l.Similarity, l.Model, formatTime(l.ComputedAt))
		if err != nil {
			return fmt.Errorf("insert link %s->%s: %w", fromID, l.ToID, err)
		}
	}
	return tx.Commit()
}

// Links implements Store.
func (s *SQLStore) Links(ctx context.Context, fromID string) ([]ticket.RelatedLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_id, similarity, model, computed_at FROM related_links
		 WHERE from_id = ? ORDER BY similarity DESC, to_id ASC`, fromID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ticket.RelatedLink
	for rows.Next() {
		l := ticket.RelatedLink{FromID: fromID}
		var computed string
		if err := rows.Scan(&l.ToID, &l.Similarity, &l.Model, &computed); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.ComputedAt = parseTime(computed)
		out = append(out, l)
	}
	return out, rows.Err()
}

// load reads the record for id, or every record when id is empty, ordered
// by ticket id.
func load(ctx context.Context, q querier, id string) ([]*ticket.Record, error) {
	filter, args := "", []any(nil)
	if id != "" {
		args = []any{id}
	}

	byID := make(map[string]*ticket.Record)
	var order []string

	if id != "" {
		filter = " WHERE id = ?"
	}
	err := each(ctx, q, `SELECT id, source, title, description, acceptance_criteria, status, issue_type,
		url, fields, fingerprint, updated_at, fetched_at, synced_at FROM tickets`+filter+` ORDER BY id`, args,
		func(rows *sql.Rows) error {
			var t ticket.Ticket
			var fields []byte
			var fp, updated, fetched, synced string
			if err := rows.Scan(&t.ID, &t.Source, &t.Title, &t.Description, &t.AcceptanceCriteria,
				&t.Status, &t.IssueType, &t.URL, &fields, &fp, &updated, &fetched, &synced); err != nil {
				return err
			}
			if err := decode(fields, &t.Fields); err != nil {
				return fmt.Errorf("ticket %s fields: %w", t.ID, err)
			}
			t.Fingerprint = fingerprint.Value(fp)
			t.UpdatedAt, t.FetchedAt, t.SyncedAt = parseTime(updated), parseTime(fetched), parseTime(synced)
			byID[t.ID] = &ticket.Record{Ticket: &t}
			order = append(order, t.ID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	if id != "" {
		filter = " WHERE ticket_id = ?"
	}

	err = each(ctx, q, `SELECT ticket_id, kind, id, content, items, model, fingerprint, generated_at,
		publish_status, published_at, remote_comment_id FROM artifacts`+filter, args,
		func(rows *sql.Rows) error {
			var a ticket.Artifact
			var items []byte
			var fp, generated, published string
			if err := rows.Scan(&a.TicketID, &a.Kind, &a.ID, &a.Content, &items, &a.Model, &fp,
				&generated, &a.PublishStatus, &published, &a.RemoteCommentID); err != nil {
				return err
			}
			if err := decode(items, &a.Items); err != nil {
				return fmt.Errorf("artifact %s items: %w", a.ID, err)
			}
			a.Fingerprint = fingerprint.Value(fp)
			a.GeneratedAt, a.PublishedAt = parseTime(generated), parseTime(published)
			if r, ok := byID[a.TicketID]; ok {
				r.SetArtifact(&a)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	err = each(ctx, q, `SELECT ticket_id, vector, model, fingerprint, computed_at FROM embeddings`+filter, args,
		func(rows *sql.Rows) error {
			var e ticket.Embedding
			var vec []byte
			var fp, computed string
			if err := rows.Scan(&e.TicketID, &vec, &e.Model, &fp, &computed); err != nil {
				return err
			}
			if err := decode(vec, &e.Vector); err != nil {
				return fmt.Errorf("embedding %s vector: %w", e.TicketID, err)
			}
			e.Fingerprint = fingerprint.Value(fp)
			e.ComputedAt = parseTime(computed)
			if r, ok := byID[e.TicketID]; ok {
				r.Embedding = &e
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	err = each(ctx, q, `SELECT ticket_id, score, category, rationale, issues, suggestions, model,
		fingerprint, scored_at FROM quality_scores`+filter, args,
		func(rows *sql.Rows) error {
			var qs ticket.QualityScore
			var issues, suggestions []byte
			var fp, scored string
			if err := rows.Scan(&qs.TicketID, &qs.Score, &qs.Category, &qs.Rationale, &issues,
				&suggestions, &qs.Model, &fp, &scored); err != nil {
				return err
			}
			if err := decode(issues, &qs.Issues); err != nil {
				return err
			}
			if err := decode(suggestions, &qs.Suggestions); err != nil {
				return err
			}
			qs.Fingerprint = fingerprint.Value(fp)
			qs.ScoredAt = parseTime(scored)
			if r, ok := byID[qs.TicketID]; ok {
				r.Score = &qs
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	out := make([]*ticket.Record, 0, len(order))
	for _, tid := range order {
		out = append(out, byID[tid])
	}
	return out, nil
}

func each(ctx context.Context, q querier, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// write replaces every stored row of rec.
func write(ctx context.Context, q querier, rec *ticket.Record) error {
	t := rec.Ticket
	fields, err := encode(t.Fields)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO tickets(id, source, title, description, acceptance_criteria,
		status, issue_type, url, fields, fingerprint, updated_at, fetched_at, synced_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET source = excluded.source, title = excluded.title,
		description = excluded.description, acceptance_criteria = excluded.acceptance_criteria,
		status = excluded.status, issue_type = excluded.issue_type, url = excluded.url,
		fields = excluded.fields, fingerprint = excluded.fingerprint, updated_at = excluded.updated_at,
		fetched_at = excluded.fetched_at, synced_at = excluded.synced_at`,
		t.ID, t.Source, t.Title, t.Description, t.AcceptanceCriteria, t.Status, t.IssueType, t.URL,
		fields, string(t.Fingerprint), formatTime(t.UpdatedAt), formatTime(t.FetchedAt), formatTime(t.SyncedAt))
	if err != nil {
		return fmt.Errorf("upsert ticket: %w", err)
	}

	for _, table := range []string{"artifacts", "embeddings", "quality_scores"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE ticket_id = ?", t.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, kind := range ticket.Kinds {
		a := rec.Artifact(kind)
		if a == nil {
			continue
		}
		items, err := encode(a.Items)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `INSERT INTO artifacts(ticket_id, kind, id, content, items, model,
			fingerprint, generated_at, publish_status, published_at, remote_comment_id)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, string(a.Kind), a.ID, a.Content, items, a.Model, string(a.Fingerprint),
			formatTime(a.GeneratedAt), string(a.PublishStatus), formatTime(a.PublishedAt), a.RemoteCommentID)
		if err != nil {
			return fmt.Errorf("insert artifact %s: %w", kind, err)
		}
	}

	if e := rec.Embedding; e != nil {
		vec, err := encode(e.Vector)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `INSERT INTO embeddings(ticket_id, vector, model, fingerprint, computed_at)
			VALUES(?, ?, ?, ?, ?)`, t.ID, vec, e.Model, string(e.Fingerprint), formatTime(e.ComputedAt))
		if err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	if qs := rec.Score; qs != nil {
		issues, err := encode(qs.Issues)
		if err != nil {
			return err
		}
		suggestions, err := encode(qs.Suggestions)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `INSERT INTO quality_scores(ticket_id, score, category, rationale, issues,
			suggestions, model, fingerprint, scored_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, qs.Score, string(qs.Category), qs.Rationale, issues, suggestions, qs.Model,
			string(qs.Fingerprint), formatTime(qs.ScoredAt))
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	return nil
}

// encode returns nil for empty values so they read back as nil.
func encode[T any](v T) ([]byte, error) {
	switch x := any(v).(type) {
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case []float32:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s = strings.TrimSpace(s); s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
