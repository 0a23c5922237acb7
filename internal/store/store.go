// Package store archives what scrolls off the overlay: finished transcript
// lines and summaries, per session.
//
// Implementations live in subpackages (memory, postgres). Sessions never
// write to a Store directly; they go through a [Writer] so the render tick
// never waits on the database.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Recent] for a session without entries.
var ErrNotFound = errors.New("store: not found")

// Kind tells transcript lines and summaries apart.
type Kind string

const (
	KindLine    Kind = "line"
	KindSummary Kind = "summary"
)

// Entry is one archived item.
type Entry struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store persists archived entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// AppendLines stores transcript lines in order.
	AppendLines(ctx context.Context, sessionID string, lines []Entry) error
	// AppendSummary stores one summary.
	AppendSummary(ctx context.Context, sessionID string, summary Entry) error
	// Recent returns up to limit of the newest entries of a session, oldest
	// first. limit <= 0 returns all of them.
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	// Ping reports whether the store can be reached.
	Ping(ctx context.Context) error
	Close()
}
