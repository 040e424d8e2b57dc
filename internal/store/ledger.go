package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Ledger persists a durable record of every knowledge addition. It backs
// statistics and audit only; retrieval always goes through the vector store.
type Ledger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// Entry is one recorded knowledge addition.
type Entry struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
	AddedAt  time.Time         `json:"added_at"`
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS knowledge_ledger (
	id UUID PRIMARY KEY,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS knowledge_ledger_source_idx ON knowledge_ledger (source);
`

// NewLedger connects a pgx pool and bootstraps the schema.
func NewLedger(ctx context.Context, dsn string, logger *zap.Logger) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, ledgerSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap ledger schema: %w", err)
	}
	logger.Info("knowledge ledger connected")
	return &Ledger{db: pool, logger: logger}, nil
}

// Append records one knowledge addition and returns its ID.
func (l *Ledger) Append(ctx context.Context, content, source string, metadata map[string]string) (string, error) {
	id := uuid.New().String()
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO knowledge_ledger (id, content, source, metadata, added_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		id, content, source, meta,
	)
	if err != nil {
		return "", fmt.Errorf("append ledger entry: %w", err)
	}
	return id, nil
}

// Recent returns the latest entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, content, source, metadata, added_at
		FROM knowledge_ledger
		ORDER BY added_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Content, &e.Source, &meta, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count reports the total number of recorded additions.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_ledger`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger: %w", err)
	}
	return n, nil
}

// DistinctSources reports every source seen, alphabetically.
func (l *Ledger) DistinctSources(ctx context.Context) ([]string, error) {
	rows, err := l.db.Query(ctx, `SELECT DISTINCT source FROM knowledge_ledger ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Close shuts down the connection pool.
func (l *Ledger) Close() {
	l.db.Close()
}
