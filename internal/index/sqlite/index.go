// Package sqlite provides the embedded FTS5 keyword index. It is the
// default backend: zero external services, one file on disk.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/scrypster/recall/internal/index"
)

var _ index.Index = (*KeywordIndex)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id      TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    content,
    content='documents',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
    INSERT INTO documents_fts(rowid, content) VALUES (new.rowid, new.content);
END;
`

// KeywordIndex is a per-user FTS5 index over record content. The FTS
// virtual table is kept in sync with the documents table via triggers.
type KeywordIndex struct {
	db *sql.DB
}

// Open creates or opens the index database at path. Use ":memory:" for an
// ephemeral index.
func Open(path string) (*KeywordIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// modernc.org/sqlite connections do not share in-memory schemas and
	// FTS writes require serialized access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &KeywordIndex{db: db}, nil
}

// Index upserts one document.
func (k *KeywordIndex) Index(ctx context.Context, doc index.Document) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, content) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, content = excluded.content`,
		doc.ID, doc.UserID, doc.Content)
	if err != nil {
		return fmt.Errorf("sqlite: index document %s: %w", doc.ID, err)
	}
	return nil
}

// Remove deletes one document. Unknown IDs are a no-op.
func (k *KeywordIndex) Remove(ctx context.Context, id string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: remove document %s: %w", id, err)
	}
	return nil
}

// Search runs an FTS5 MATCH over the user's documents. FTS5 rank is
// negative (more negative is better), so scores are returned as -rank to
// give callers the usual higher-is-better orientation.
func (k *KeywordIndex) Search(ctx context.Context, userID, query string, limit int) ([]index.Hit, error) {
	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := k.db.QueryContext(ctx, `
		SELECT d.id, d.content, -fts.rank
		FROM documents_fts fts
		JOIN documents d ON d.rowid = fts.rowid
		WHERE documents_fts MATCH ? AND d.user_id = ?
		ORDER BY fts.rank
		LIMIT ?`,
		ftsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: MATCH %q: %w", query, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var h index.Hit
		if err := rows.Scan(&h.ID, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("sqlite: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate hits: %w", err)
	}
	return hits, nil
}

// Close releases the database handle.
func (k *KeywordIndex) Close() error {
	return k.db.Close()
}

// sanitizeFTSQuery converts free-form input into a safe FTS5 MATCH
// expression. FTS5 syntax is fragile: an unbalanced quote or a stray
// operator keyword turns into "fts5: syntax error". Each surviving word
// becomes a prefix term, OR-joined for recall.
func sanitizeFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, ` `,
		`'`, ` `,
		`(`, ` `,
		`)`, ` `,
		`*`, ` `,
		`-`, ` `,
		`^`, ` `,
		`?`, ` `,
		`:`, ` `,
		`.`, ` `,
		`,`, ` `,
	)
	words := strings.Fields(strings.ToLower(replacer.Replace(query)))

	var terms []string
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " OR ")
}
