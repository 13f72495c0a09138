package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
)

// SQLiteRepository is a single-file store for local runs. Embeddings are kept
// as JSON arrays and similarity is computed in process.
type SQLiteRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.ItemRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)
	return NewSQLiteRepository(db), nil
}

// NewSQLiteRepository wires an already opened database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now:     time.Now,
	}
}

// Migrate creates the items table.
func (r *SQLiteRepository) Migrate(ctx context.Context, _ int) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sota_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		summary TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		publish_date TEXT NOT NULL DEFAULT '',
		embedding TEXT,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ExistingURLs returns the subset of urls already stored, in one query.
func (r *SQLiteRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := r.builder.Select("url").From(tableName).Where(sq.Eq{"url": urls}).ToSql()
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

// InsertBatch writes all records in one statement; it is all-or-nothing.
func (r *SQLiteRepository) InsertBatch(ctx context.Context, records []domain.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	created := r.now().UTC().Unix()
	insert := r.builder.Insert(tableName).
		Columns("title", "url", "summary", "score", "tags", "source", "publish_date", "embedding", "created_at")
	for _, rec := range records {
		emb, err := encodeEmbedding(rec.Embedding)
		if err != nil {
			return err
		}
		insert = insert.Values(rec.Title, rec.URL, rec.Summary, rec.Score, rec.Tags, rec.Source, rec.PublishDate, emb, created)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert batch: %w", translateSQLiteError(err))
	}
	return nil
}

// Insert writes one record.
func (r *SQLiteRepository) Insert(ctx context.Context, record domain.StoredRecord) error {
	return r.InsertBatch(ctx, []domain.StoredRecord{record})
}

// Search ranks embedded records by cosine similarity to query.
func (r *SQLiteRepository) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]domain.SearchHit, error) {
	sel := r.builder.Select(append(recordColumns, "embedding")...).From(tableName).
		Where(sq.NotEq{"embedding": nil})
	sqlText, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}

	var hits []domain.SearchHit
	for rows.Next() {
		var (
			rec     domain.StoredRecord
			created int64
			raw     string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &rec.Summary, &rec.Score, &rec.Tags,
			&rec.Source, &rec.PublishDate, &created, &raw); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan record: %w", err))
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		if err := json.Unmarshal([]byte(raw), &rec.Embedding); err != nil {
			return nil, closeRows(rows, fmt.Errorf("decode embedding %d: %w", rec.ID, err))
		}

		similarity := cosine(query, rec.Embedding)
		if similarity > threshold {
			hits = append(hits, domain.SearchHit{Record: rec, Similarity: similarity})
		}
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Recent lists records with score >= minScore, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, minScore, limit int) ([]domain.StoredRecord, error) {
	return r.selectRecords(ctx, r.builder.Select(recordColumns...).From(tableName).
		Where(sq.GtOrEq{"score": minScore}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)))
}

// MissingEmbeddings lists records whose embedding is still NULL.
func (r *SQLiteRepository) MissingEmbeddings(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	return r.selectRecords(ctx, r.builder.Select(recordColumns...).From(tableName).
		Where(sq.Eq{"embedding": nil}).
		OrderBy("id").
		Limit(uint64(limit)))
}

// SetEmbedding fills the embedding of one record.
func (r *SQLiteRepository) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	emb, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	query, args, err := r.builder.Update(tableName).Set("embedding", emb).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update embedding %d: %w", id, err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) selectRecords(ctx context.Context, sel sq.SelectBuilder) ([]domain.StoredRecord, error) {
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
		var (
			rec     domain.StoredRecord
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &rec.Summary, &rec.Score, &rec.Tags,
			&rec.Source, &rec.PublishDate, &created); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan record: %w", err))
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, rec)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return records, nil
}

func encodeEmbedding(embedding []float32) (any, error) {
	if embedding == nil {
		return nil, nil
	}
	raw, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(raw), nil
}

func translateSQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateURL, err)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateURL, err)
	}
	return err
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
