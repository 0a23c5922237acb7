package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultQueueSize is the number of pending batches a [Writer] buffers.
const DefaultQueueSize = 256

type batch struct {
	kind  Kind
	texts []string
	at    time.Time
}

// Writer queues archive writes for one session and applies them on a
// background goroutine. Its ArchiveLines and ArchiveSummary methods never
// block: when the queue is full the batch is dropped and logged.
type Writer struct {
	store     Store
	sessionID string
	log       *slog.Logger
	now       func() time.Time
	timeout   time.Duration

	queue chan batch
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	dropped   int
}

// WriterOption configures a [Writer].
type WriterOption func(*Writer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.log = l }
}

// WithQueueSize sets the number of batches buffered before writes are
// dropped.
func WithQueueSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.queue = make(chan batch, n)
		}
	}
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithWriteTimeout bounds every store call. Default: 5s.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) { w.timeout = d }
}

// NewWriter starts a Writer for sessionID. Call [Writer.Close] to flush it.
func NewWriter(s Store, sessionID string, opts ...WriterOption) *Writer {
	w := &Writer{
		store:     s,
		sessionID: sessionID,
		now:       time.Now,
		timeout:   5 * time.Second,
		queue:     make(chan batch, DefaultQueueSize),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	w.log = w.log.With("session_id", sessionID)
	go w.run()
	return w
}

// ArchiveLines queues transcript lines.
func (w *Writer) ArchiveLines(lines []string) {
	var texts []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			texts = append(texts, l)
		}
	}
	if len(texts) > 0 {
		w.enqueue(batch{kind: KindLine, texts: texts, at: w.now()})
	}
}

// ArchiveSummary queues a summary.
func (w *Writer) ArchiveSummary(summary string) {
	if summary = strings.TrimSpace(summary); summary != "" {
		w.enqueue(batch{kind: KindSummary, texts: []string{summary}, at: w.now()})
	}
}

// Dropped returns how many batches were dropped because the queue was full.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Writer) enqueue(b batch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- b:
	default:
		w.dropped++
		w.log.Warn("archive queue full, dropping entries", "kind", string(b.kind), "count", len(b.texts))
	}
}

// Close stops accepting writes and waits until queued ones are stored.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for b := range w.queue {
		w.write(b)
	}
}

func (w *Writer) write(b batch) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	switch b.kind {
	case KindSummary:
		err = w.store.AppendSummary(ctx, w.sessionID, Entry{Kind: KindSummary, Text: b.texts[0], At: b.at})
	default:
		entries := make([]Entry, len(b.texts))
		for i, t := range b.texts {
			entries[i] = Entry{Kind: KindLine, Text: t, At: b.at}
		}
		err = w.store.AppendLines(ctx, w.sessionID, entries)
	}
	if err != nil {
		w.log.Error("archive write failed", "kind", string(b.kind), "count", len(b.texts), "err", err)
	}
}
