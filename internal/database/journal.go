package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"botfeed/internal/model"
)

const flushTimeout = 5 * time.Second

// Journal writes feed entries and pool transactions to a Repository off the
// simulation thread. Records that do not fit in the buffer are dropped.
type Journal struct {
	logger  *slog.Logger
	repo    Repository
	entries chan model.LogEntry
	txs     chan model.PoolTransaction
	dropped atomic.Int64
}

// NewJournal creates a journal with room for size pending records of each
// kind.
func NewJournal(logger *slog.Logger, repo Repository, size int) *Journal {
	if size <= 0 {
		size = 1
	}
	return &Journal{
		logger:  logger,
		repo:    repo,
		entries: make(chan model.LogEntry, size),
		txs:     make(chan model.PoolTransaction, size),
	}
}

// RecordEntry queues entry without blocking.
func (j *Journal) RecordEntry(entry model.LogEntry) {
	select {
	case j.entries <- entry:
	default:
		j.drop("log entry", entry.ID)
	}
}

// RecordTransaction queues tx without blocking.
func (j *Journal) RecordTransaction(tx model.PoolTransaction) {
	select {
	case j.txs <- tx:
	default:
		j.drop("pool transaction", tx.ID)
	}
}

// Dropped returns how many records were discarded because the buffer was
// full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run writes queued records until ctx is cancelled, then flushes what is
// still buffered.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return
		case entry := <-j.entries:
			j.writeEntry(ctx, entry)
		case tx := <-j.txs:
			j.writeTransaction(ctx, tx)
		}
	}
}

func (j *Journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case entry := <-j.entries:
			j.writeEntry(ctx, entry)
		case tx := <-j.txs:
			j.writeTransaction(ctx, tx)
		default:
			return
		}
	}
}

func (j *Journal) writeEntry(ctx context.Context, entry model.LogEntry) {
	if err := j.repo.LogEntry(ctx, entry); err != nil {
		j.logger.Error("Failed to journal log entry", "error", err, "entry", entry.ID)
	}
}

func (j *Journal) writeTransaction(ctx context.Context, tx model.PoolTransaction) {
	if err := j.repo.LogPoolTransaction(ctx, tx); err != nil {
		j.logger.Error("Failed to journal pool transaction", "error", err, "transaction", tx.ID)
	}
}

func (j *Journal) drop(kind, id string) {
	n := j.dropped.Add(1)
	if n == 1 || n%100 == 0 {
		j.logger.Warn("Journal buffer full, dropping record", "kind", kind, "id", id, "dropped", n)
	}
}
