package search

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PgVectorStore keeps chunks in a postgres table using the pgvector extension. The table is
// named after the index with dashes swapped for underscores.
type PgVectorStore struct {
	db    *sql.DB
	table string
}

func OpenPgVectorStore(dsn, password, index string) (*PgVectorStore, error) {
	connStr, err := dsnWithPassword(dsn, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return NewPgVectorStore(db, index), nil
}

func NewPgVectorStore(db *sql.DB, index string) *PgVectorStore {
	return &PgVectorStore{db: db, table: strings.ReplaceAll(index, "-", "_")}
}

func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

func (s *PgVectorStore) Bind(ctx context.Context) error {
	var found sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, s.table).Scan(&found)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", s.table, err)
	}
	if !found.Valid {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, s.table)
	}
	return nil
}

func (s *PgVectorStore) EnsureIndex(ctx context.Context, dims int) error {
	table := pq.QuoteIdentifier(s.table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			title TEXT,
			link TEXT,
			source TEXT,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(s.table+"_embedding_idx"), table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare table %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, COALESCE(title, ''), COALESCE(link, ''), COALESCE(source, ''), content,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pq.QuoteIdentifier(s.table)), vectorLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector query: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Link, &d.Source, &d.Content, &d.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return docs, nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (chunk_id, title, link, source, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			title = EXCLUDED.title,
			link = EXCLUDED.link,
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, pq.QuoteIdentifier(s.table)))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Link, d.Source, d.Content, vectorLiteral(d.Vectors)); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// vectorLiteral renders v in pgvector's text format, e.g. [0.1,0.25,-3]
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, val := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(val), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// dsnWithPassword adds the vector store key as the connection password, for both URL and
// key=value connection strings.
func dsnWithPassword(dsn, password string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid PG_CONN: %w", err)
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String(), nil
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return fmt.Sprintf("%s password='%s'", strings.TrimSpace(dsn), escaped), nil
}
