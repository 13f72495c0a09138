package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
)

const pgUniqueViolation = "23505"

// PostgresRepository persists stored records into Postgres with pgvector.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ItemRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the vector extension, table and match function.
func (r *PostgresRepository) Migrate(ctx context.Context, dimensions int) error {
	for _, stmt := range postgresSchema(dimensions) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ExistingURLs returns the subset of urls already stored, in one query.
func (r *PostgresRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := r.builder.Select("url").From(tableName).
		Where(sq.Expr("url = ANY(?)", pq.StringArray(urls))).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing: %w", err)
	}

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan url: %w", err))
		}
		result[url] = struct{}{}
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertBatch writes all records in one statement.
func (r *PostgresRepository) InsertBatch(ctx context.Context, records []domain.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	insert := r.builder.Insert(tableName).
		Columns("title", "url", "summary", "score", "tags", "source", "publish_date", "embedding")
	for _, rec := range records {
		insert = insert.Values(rec.Title, rec.URL, rec.Summary, rec.Score, rec.Tags, rec.Source, rec.PublishDate, vectorValue(rec.Embedding))
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert batch: %w", translatePostgresError(err))
	}
	return nil
}

// Insert writes one record.
func (r *PostgresRepository) Insert(ctx context.Context, record domain.StoredRecord) error {
	return r.InsertBatch(ctx, []domain.StoredRecord{record})
}

// Search calls match_sota_items and returns hits ordered by similarity.
func (r *PostgresRepository) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]domain.SearchHit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, url, summary, score, tags, source, publish_date, created_at, similarity
		 FROM match_sota_items($1, $2, $3)`,
		pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match items: %w", err)
	}

	var hits []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		rec := &hit.Record
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &rec.Summary, &rec.Score, &rec.Tags,
			&rec.Source, &rec.PublishDate, &rec.CreatedAt, &hit.Similarity); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan hit: %w", err))
		}
		hits = append(hits, hit)
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return hits, nil
}

// Recent lists records with score >= minScore, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, minScore, limit int) ([]domain.StoredRecord, error) {
	return r.selectRecords(ctx, r.builder.Select(recordColumns...).From(tableName).
		Where(sq.GtOrEq{"score": minScore}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)))
}

// MissingEmbeddings lists records whose embedding is still NULL.
func (r *PostgresRepository) MissingEmbeddings(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	return r.selectRecords(ctx, r.builder.Select(recordColumns...).From(tableName).
		Where(sq.Eq{"embedding": nil}).
		OrderBy("id").
		Limit(uint64(limit)))
}

// SetEmbedding fills the embedding of one record.
func (r *PostgresRepository) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	query, args, err := r.builder.Update(tableName).
		Set("embedding", pgvector.NewVector(embedding)).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update embedding %d: %w", id, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) selectRecords(ctx context.Context, sel sq.SelectBuilder) ([]domain.StoredRecord, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var records []domain.StoredRecord
	for rows.Next() {
		var rec domain.StoredRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &rec.Summary, &rec.Score, &rec.Tags,
			&rec.Source, &rec.PublishDate, &rec.CreatedAt); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan record: %w", err))
		}
		records = append(records, rec)
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return records, nil
}

func vectorValue(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func translatePostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateURL, pqErr.Detail)
	}
	return err
}

func postgresSchema(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sota_items (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			summary TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			publish_date TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimensions),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_sota_items(
			query_embedding vector(%d), match_threshold float, match_count int)
		RETURNS TABLE (
			id bigint, title text, url text, summary text, score int, tags text,
			source text, publish_date text, created_at timestamptz, similarity float)
		LANGUAGE sql STABLE AS $$
			SELECT s.id, s.title, s.url, s.summary, s.score, s.tags, s.source, s.publish_date, s.created_at,
			       1 - (s.embedding <=> query_embedding) AS similarity
			FROM sota_items s
			WHERE s.embedding IS NOT NULL
			  AND 1 - (s.embedding <=> query_embedding) > match_threshold
			ORDER BY s.embedding <=> query_embedding
			LIMIT match_count
		$$`, dimensions),
	}
}
