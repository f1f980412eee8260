// Package audit implements an optional decision-audit sink: every chat
// message the ingest pipeline accepts or drops, and every scheduler tick's
// outcome, can be appended to it for later inspection by the operator CLI.
// The sink is diagnostic only — nothing in the control plane reads it back
// to reconstruct session or scheduler state.
package audit

import (
	"context"
	"strings"
	"time"
)

// Entry is one audited decision.
type Entry struct {
	ID        string
	Source    string // "chat_ingest" | "scheduler"
	UserID    string
	Text      string
	Outcome   string // "spoken" | "dropped"
	Reason    string
	CreatedAt time.Time
}

// Sink persists audit entries and serves the operator CLI's recent-history
// query.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NewSink selects a backend by DSN scheme: "sqlite://" for a local file,
// anything else is treated as a Postgres connection string. An empty DSN
// returns a NoopSink so the sink remains optional without special-casing
// nil at every call site, matching memory.NewStore's
// configured-store-or-in-memory-fallback shape.
func NewSink(ctx context.Context, dsn string) (Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NoopSink{}, nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		return NewSQLiteSink(strings.TrimPrefix(dsn, "sqlite://"))
	}
	return NewPostgresSink(ctx, dsn)
}

// NoopSink discards every entry; used when AuditDSN is unset.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Entry) error          { return nil }
func (NoopSink) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (NoopSink) Close() error                                 { return nil }
