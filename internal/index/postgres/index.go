// Package postgres provides the PostgreSQL keyword index for shared
// deployments. It pairs full-text search (tsvector) with a pgvector column
// holding the secondary image embedding, so image memories stay findable by
// vector even when the text surrogate is thin.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/scrypster/recall/internal/index"
)

var _ index.Index = (*KeywordIndex)(nil)

// imageEmbeddingDim fixes the pgvector column width. Secondary embeddings
// of other widths are stored as NULL rather than rejected.
const imageEmbeddingDim = 256

var schema = fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    content         TEXT NOT NULL,
    content_tsv     TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED,
    image_embedding VECTOR(%d)
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_tsv ON documents USING GIN(content_tsv);
`, imageEmbeddingDim)

// KeywordIndex is the PostgreSQL-backed keyword index.
type KeywordIndex struct {
	db *sql.DB
}

// Open connects with the given DSN and applies the schema. Requires the
// pgvector extension to be installable by the connecting role.
func Open(dsn string) (*KeywordIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &KeywordIndex{db: db}, nil
}

// Index upserts one document, including its image embedding when present
// and of the expected width.
func (k *KeywordIndex) Index(ctx context.Context, doc index.Document) error {
	var vec interface{}
	if len(doc.ImageEmbedding) == imageEmbeddingDim {
		f32 := make([]float32, len(doc.ImageEmbedding))
		for i, v := range doc.ImageEmbedding {
			f32[i] = float32(v)
		}
		vec = pgvector.NewVector(f32)
	}

	_, err := k.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, content, image_embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			content = EXCLUDED.content,
			image_embedding = COALESCE(EXCLUDED.image_embedding, documents.image_embedding)`,
		doc.ID, doc.UserID, doc.Content, vec)
	if err != nil {
		return fmt.Errorf("postgres: index document %s: %w", doc.ID, err)
	}
	return nil
}

// Remove deletes one document. Unknown IDs are a no-op.
func (k *KeywordIndex) Remove(ctx context.Context, id string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: remove document %s: %w", id, err)
	}
	return nil
}

// Search ranks the user's documents with ts_rank over a plainto_tsquery.
// The 'simple' configuration skips stemming so non-English content is
// matched verbatim.
func (k *KeywordIndex) Search(ctx context.Context, userID, query string, limit int) ([]index.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := k.db.QueryContext(ctx, `
		SELECT id, content, ts_rank(content_tsv, q) AS score
		FROM documents, plainto_tsquery('simple', $2) q
		WHERE user_id = $1 AND content_tsv @@ q
		ORDER BY score DESC
		LIMIT $3`,
		userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search %q: %w", query, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var h index.Hit
		if err := rows.Scan(&h.ID, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate hits: %w", err)
	}
	return hits, nil
}

// SearchByImage returns the user's nearest image memories by cosine
// distance over the pgvector column.
func (k *KeywordIndex) SearchByImage(ctx context.Context, userID string, embedding []float64, limit int) ([]index.Hit, error) {
	if len(embedding) != imageEmbeddingDim {
		return nil, fmt.Errorf("postgres: image embedding has dimension %d, want %d", len(embedding), imageEmbeddingDim)
	}
	if limit <= 0 {
		limit = 10
	}
	f32 := make([]float32, len(embedding))
	for i, v := range embedding {
		f32[i] = float32(v)
	}

	rows, err := k.db.QueryContext(ctx, `
		SELECT id, content, 1 - (image_embedding <=> $2) AS score
		FROM documents
		WHERE user_id = $1 AND image_embedding IS NOT NULL
		ORDER BY image_embedding <=> $2
		LIMIT $3`,
		userID, pgvector.NewVector(f32), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: image search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var h index.Hit
		if err := rows.Scan(&h.ID, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate hits: %w", err)
	}
	return hits, nil
}

// Close releases the connection pool.
func (k *KeywordIndex) Close() error {
	return k.db.Close()
}
