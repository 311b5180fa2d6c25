// Package ordernumber mints the human-facing order identifier:
// PREFIX-YYYYMMDD-NNNN, with NNNN a per-day sequence. Deriving the sequence
// from a count of same-day orders is racy under concurrent creation, so both
// implementations here hand out numbers from a single atomic increment.
package ordernumber

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const DefaultPrefix = "ORD"

const dayLayout = "20060102"

// Generator mints order numbers unique within a calendar day.
type Generator interface {
	Next(ctx context.Context, t time.Time) (string, error)
}

// Format renders an order number from its parts. Sequences past 9999 widen
// the field instead of wrapping.
func Format(prefix string, t time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, t.Format(dayLayout), seq)
}

// MemorySequence is a process-local generator. A single mutex around the
// per-day counter makes Next linearizable; fine for one API instance and for
// tests, use PostgresSequence when several instances create orders.
type MemorySequence struct {
	prefix string

	mu   sync.Mutex
	seqs map[string]int // day -> last issued sequence
}

func NewMemorySequence(prefix string) *MemorySequence {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &MemorySequence{
		prefix: prefix,
		seqs:   make(map[string]int),
	}
}

func (g *MemorySequence) Next(ctx context.Context, t time.Time) (string, error) {
	day := t.Format(dayLayout)

	g.mu.Lock()
	g.seqs[day]++
	seq := g.seqs[day]
	g.mu.Unlock()

	return Format(g.prefix, t, seq), nil
}

// PostgresSequence allocates sequences from a per-day counter row. The whole
// increment-and-read is one statement, so concurrent callers can never
// observe the same sequence.
type PostgresSequence struct {
	db     *sql.DB
	prefix string
}

func NewPostgresSequence(db *sql.DB, prefix string) *PostgresSequence {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PostgresSequence{db: db, prefix: prefix}
}

func (g *PostgresSequence) Next(ctx context.Context, t time.Time) (string, error) {
	day := t.Format(dayLayout)

	var seq int
	err := g.db.QueryRowContext(ctx,
		`INSERT INTO order_sequences (day, seq)
		 VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET seq = order_sequences.seq + 1
		 RETURNING seq`,
		day,
	).Scan(&seq)
	if err != nil {
		return "", errors.Wrap(err, "next order sequence")
	}

	return Format(g.prefix, t, seq), nil
}
