package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/index"
)

// ChunkVector is one row per chunk; ChunkPos is the chunk's position in the
// document and the only link back to its text.
type ChunkVector struct {
	bun.BaseModel `bun:"table:document_chunks,alias:d"`
	ChunkPos      int             `bun:"chunk_pos,pk"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

func ConnectDB(cfg *config.DatabaseConfig) *sql.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB enables pgvector and drops vectors left by a previous process.
func InitDB(ctx context.Context, db *bun.DB, table string) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return dropTable(ctx, db, table)
}

func dropTable(ctx context.Context, db *bun.DB, table string) error {
	_, err := db.NewDropTable().Table(table).IfExists().Exec(ctx)
	return err
}

// Index stores chunk vectors in a pgvector table and ranks by L2 distance,
// breaking ties by chunk position. Every Build recreates the table.
type Index struct {
	db    *bun.DB
	table string
	size  int
}

var _ index.Index = (*Index)(nil)

func NewIndex(db *bun.DB, table string) *Index {
	return &Index{db: db, table: table}
}

func (m *Index) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return index.ErrNoVectors
	}

	rows := make([]ChunkVector, len(vectors))
	for i, v := range vectors {
		rows[i] = ChunkVector{ChunkPos: i, Embedding: pgvector.NewVector(v)}
	}

	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Table(m.table).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if _, err := tx.NewCreateTable().
			Model((*ChunkVector)(nil)).
			ModelTableExpr("?", bun.Ident(m.table)).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		if _, err := tx.NewInsert().
			Model(&rows).
			ModelTableExpr("?", bun.Ident(m.table)).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert vectors: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.size = len(rows)
	log.Debug().Str("table", m.table).Int("rows", m.size).Msg("Built pgvector index")
	return nil
}

func (m *Index) Search(ctx context.Context, query []float32, k int) ([]int, error) {
	if m.size == 0 || k <= 0 {
		return nil, nil
	}

	var rows []ChunkVector
	if err := m.searchQuery(&rows, query, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	positions := make([]int, len(rows))
	for i, r := range rows {
		positions[i] = r.ChunkPos
	}
	return positions, nil
}

func (m *Index) searchQuery(rows *[]ChunkVector, query []float32, k int) *bun.SelectQuery {
	return m.db.NewSelect().
		Model(rows).
		ModelTableExpr("? AS d", bun.Ident(m.table)).
		Column("chunk_pos").
		OrderExpr("embedding <-> ?", pgvector.NewVector(query)).
		OrderExpr("chunk_pos ASC").
		Limit(k)
}

func (m *Index) Size() int {
	return m.size
}
