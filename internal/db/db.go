package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-chatbot/internal/models"
)

const (
	tablePrefix = "rag_chunks_"

	createTableSQL = `CREATE TABLE ? (
	id bigserial PRIMARY KEY,
	seq integer NOT NULL,
	chunk_id varchar NOT NULL,
	content varchar NOT NULL,
	source_filename varchar,
	page_number integer,
	embedding vector NOT NULL
)`
)

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]`)

// Document is one chunk row; every session gets its own table
type Document struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Seq           int             `bun:"seq,notnull"`
	ChunkID       string          `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	SourceFile    string          `bun:"source_filename"`
	PageNumber    int             `bun:"page_number"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Distance      float64         `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// Index stores chunk vectors in a session-scoped pgvector table and ranks
// them by cosine distance.
type Index struct {
	mu    sync.RWMutex
	db    *bun.DB
	table string
	built bool
	count int
	dims  int
}

// NewIndex binds an index to db; sessionID names the backing table
func NewIndex(db *bun.DB, sessionID string) *Index {
	return &Index{
		db:    db,
		table: tableName(sessionID),
	}
}

func tableName(sessionID string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(sessionID), "_")
	if name == "" {
		name = "default"
	}
	return tablePrefix + name
}

func (x *Index) Table() string {
	return x.table
}

// InitDB enables the pgvector extension
func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	return err
}

// Build drops and recreates the table, then inserts every chunk in one statement
func (x *Index) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", models.ErrIndex, len(chunks), len(vectors))
	}
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return fmt.Errorf("%w: %w: vector %d has %d dimensions, want %d", models.ErrIndex, models.ErrDimensionMismatch, i, len(v), dims)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.built = false

	err := x.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Table(x.table).IfExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, createTableSQL, bun.Ident(x.table)); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}

		docs := make([]Document, len(chunks))
		for i, c := range chunks {
			docs[i] = Document{
				Seq:        i,
				ChunkID:    c.ID,
				Content:    c.Text,
				SourceFile: c.Source,
				PageNumber: c.Page,
				Embedding:  pgvector.NewVector(vectors[i]),
			}
		}
		_, err := tx.NewInsert().Model(&docs).ModelTableExpr("? AS d", bun.Ident(x.table)).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: build table %s: %w", models.ErrIndex, x.table, err)
	}

	x.built = true
	x.count = len(chunks)
	x.dims = dims
	log.Debug().Str("table", x.table).Int("documents", len(chunks)).Msg("Built pgvector index")
	return nil
}

func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.built {
		return nil, fmt.Errorf("%w: %w", models.ErrIndex, models.ErrIndexNotBuilt)
	}
	if k <= 0 || x.count == 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(vector) != x.dims {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, index has %d", models.ErrIndex, models.ErrDimensionMismatch, len(vector), x.dims)
	}

	// cosine distance is NaN for a zero vector; order by seq alone then
	q := pgvector.NewVector(vector)
	distance := "COALESCE(NULLIF(embedding <=> ?, 'NaN'), 1)"

	var docs []Document
	err := x.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", bun.Ident(x.table)).
		Column("seq", "chunk_id", "content", "source_filename", "page_number").
		ColumnExpr(distance+" AS distance", q).
		OrderExpr(distance+" ASC", q).
		OrderExpr("seq ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", models.ErrIndex, x.table, err)
	}

	hits := make([]models.ScoredChunk, len(docs))
	for i, d := range docs {
		hits[i] = models.ScoredChunk{
			Chunk: models.Chunk{
				ID:     d.ChunkID,
				Seq:    d.Seq,
				Text:   d.Content,
				Page:   d.PageNumber,
				Source: d.SourceFile,
			},
			Distance: float32(d.Distance),
		}
	}
	return hits, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Close drops the session table
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.built = false
	x.count = 0
	if _, err := x.db.NewDropTable().Table(x.table).IfExists().Exec(context.Background()); err != nil {
		return fmt.Errorf("%w: drop table %s: %w", models.ErrIndex, x.table, err)
	}
	return nil
}
