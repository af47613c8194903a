package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	batches  [][]record
	attempts int
	failNext int
}

func (f *fakeSink) commitBatch(batch []record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("store down")
	}
	cp := make([]record, len(batch))
	copy(cp, batch)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeSink) committed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBufferCommitsOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	b := newBuffer(sink, discardLogger(), 3, time.Hour, nil)
	defer b.close(context.Background())

	for n := 0; n < 3; n++ {
		b.submit(record{kind: recEvent})
	}
	require.Eventually(t, func() bool { return sink.committed() == 3 },
		2*time.Second, 5*time.Millisecond)
}

func TestBufferCommitsOnTimeout(t *testing.T) {
	sink := &fakeSink{}
	b := newBuffer(sink, discardLogger(), 100, 20*time.Millisecond, nil)
	defer b.close(context.Background())

	b.submit(record{kind: recHistory})
	require.Eventually(t, func() bool { return sink.committed() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestBufferFlushDrains(t *testing.T) {
	sink := &fakeSink{}
	b := newBuffer(sink, discardLogger(), 100, time.Hour, nil)
	defer b.close(context.Background())

	b.submit(record{kind: recAgent})
	b.submit(record{kind: recTrend})
	require.NoError(t, b.flush(context.Background()))
	assert.Equal(t, 2, sink.committed())
}

func TestBufferRetriesThenSucceeds(t *testing.T) {
	sink := &fakeSink{failNext: 2}
	b := newBuffer(sink, discardLogger(), 1,
		time.Hour, []time.Duration{time.Millisecond, time.Millisecond})
	defer b.close(context.Background())

	b.submit(record{kind: recEvent})
	require.Eventually(t, func() bool { return sink.committed() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, sink.attempts)
}

func TestBufferDropsAfterRetriesExhausted(t *testing.T) {
	sink := &fakeSink{failNext: 10}
	b := newBuffer(sink, discardLogger(), 1,
		time.Hour, []time.Duration{time.Millisecond})
	defer b.close(context.Background())

	b.submit(record{kind: recEvent})
	require.NoError(t, b.flush(context.Background()))
	// Two attempts (initial + one retry), batch dropped, buffer still alive.
	assert.Equal(t, 0, sink.committed())

	sink.mu.Lock()
	sink.failNext = 0
	sink.mu.Unlock()
	b.submit(record{kind: recEvent})
	require.NoError(t, b.flush(context.Background()))
	assert.Equal(t, 1, sink.committed())
}

func TestBufferFlushHonorsContext(t *testing.T) {
	sink := &fakeSink{failNext: 1000}
	b := newBuffer(sink, discardLogger(), 1,
		time.Hour, []time.Duration{200 * time.Millisecond})
	defer b.close(context.Background())

	b.submit(record{kind: recEvent})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, b.flush(ctx))
}

func TestBufferCloseDrains(t *testing.T) {
	sink := &fakeSink{}
	b := newBuffer(sink, discardLogger(), 100, time.Hour, nil)

	b.submit(record{kind: recArchive})
	require.NoError(t, b.close(context.Background()))
	assert.Equal(t, 1, sink.committed())
}
