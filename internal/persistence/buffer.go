package persistence

import (
	"context"
	"log/slog"
	"time"

	"capsim/internal/metrics"
)

type recordKind int

const (
	recAgent recordKind = iota
	recTrend
	recEvent
	recHistory
	recArchive
)

// record is one buffered write. Exactly one payload field is set, per kind.
type record struct {
	kind      recordKind
	agent     agentRow
	trend     trendRow
	event     eventRow
	change    historyRow
	archiveID string
}

// batchSink commits a batch of records in a single transaction.
type batchSink interface {
	commitBatch(batch []record) error
}

// buffer collects writes and commits them on a background goroutine when the
// batch size is reached, when the timeout elapses, or on an explicit flush.
// Failed commits retry on the configured backoff schedule; a batch that
// exhausts its retries is dropped and counted, never retried forever.
type buffer struct {
	sink     batchSink
	log      *slog.Logger
	size     int
	timeout  time.Duration
	backoffs []time.Duration

	in       chan record
	flushReq chan chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

func newBuffer(sink batchSink, log *slog.Logger, size int, timeout time.Duration, backoffs []time.Duration) *buffer {
	b := &buffer{
		sink:     sink,
		log:      log,
		size:     size,
		timeout:  timeout,
		backoffs: backoffs,
		in:       make(chan record, size*8),
		flushReq: make(chan chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// submit enqueues a record without blocking the simulation loop. If the
// channel is saturated (sink stuck in retries) the record is dropped.
func (b *buffer) submit(r record) {
	select {
	case b.in <- r:
	default:
		metrics.BatchCommitErrors.Inc()
		b.log.Error("persistence buffer saturated, dropping record", "kind", r.kind)
	}
}

// flush blocks until every record submitted before the call is committed,
// or the context expires.
func (b *buffer) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case b.flushReq <- done:
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the flusher after a final drain, waiting at most the context's
// deadline for it to finish.
func (b *buffer) close(ctx context.Context) error {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *buffer) run() {
	defer close(b.done)
	ticker := time.NewTicker(b.timeout)
	defer ticker.Stop()

	var pending []record
	for {
		select {
		case r := <-b.in:
			pending = append(pending, r)
			if len(pending) >= b.size {
				pending = b.commit(pending)
			}
		case <-ticker.C:
			if len(pending) > 0 {
				pending = b.commit(pending)
			}
		case done := <-b.flushReq:
			pending = append(pending, b.drain()...)
			if len(pending) > 0 {
				pending = b.commit(pending)
			}
			close(done)
		case <-b.stop:
			pending = append(pending, b.drain()...)
			if len(pending) > 0 {
				b.commit(pending)
			}
			return
		}
	}
}

func (b *buffer) drain() []record {
	var out []record
	for {
		select {
		case r := <-b.in:
			out = append(out, r)
		default:
			return out
		}
	}
}

// commit writes the batch through the sink, retrying per the backoff
// schedule. The returned slice is always empty: a batch either lands or is
// dropped with a critical log so the loop can never wedge on a dead store.
func (b *buffer) commit(batch []record) []record {
	err := b.sink.commitBatch(batch)
	if err == nil {
		return nil
	}
	for _, backoff := range b.backoffs {
		time.Sleep(backoff)
		if err = b.sink.commitBatch(batch); err == nil {
			return nil
		}
	}
	metrics.BatchCommitErrors.Inc()
	b.log.Error("CRITICAL: dropping batch after retries exhausted",
		"records", len(batch), "error", err)
	return nil
}
