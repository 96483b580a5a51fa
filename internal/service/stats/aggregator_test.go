package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
)

type fakePersister struct {
	mu      sync.Mutex
	flushes []model.SessionStats
	fail    int
	block   chan struct{}
}

func (f *fakePersister) Flush(ctx context.Context, s model.SessionStats) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("disk full")
	}
	f.flushes = append(f.flushes, s)
	return nil
}

func (f *fakePersister) all() []model.SessionStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SessionStats(nil), f.flushes...)
}

func outcome(decisions ...model.BlurDecision) model.FrameOutcome {
	return model.FrameOutcome{
		Stream:    "cam",
		Detected:  map[model.Category]int{model.CategoryFace: 2, model.CategoryDocument: 1},
		Decisions: decisions,
	}
}

func runAggregator(t *testing.T, cfg Config, p Persister) *Aggregator {
	t.Helper()
	a := NewAggregator(cfg, "cam", p, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return a
}

func TestRecord_Counts(t *testing.T) {
	a := NewAggregator(DefaultConfig(), "cam", nil, logger.Discard())

	a.Record(outcome(model.BlurDecision{Category: model.CategoryFace}, model.BlurDecision{Category: model.CategoryDocument, Forced: true}))
	a.Record(model.FrameOutcome{Stream: "cam", TextMatches: 1, DetectorErrors: 2, OCRTimeouts: 1, OCRDropped: 3, OCRAbandoned: 1, OCRFailures: 1})
	a.Record(model.FrameOutcome{Stream: "cam", Skipped: true})

	s := a.Snapshot()
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "cam", s.Stream)
	assert.EqualValues(t, 2, s.FramesProcessed)
	assert.EqualValues(t, 1, s.FramesSkipped)
	assert.EqualValues(t, 2, s.RegionsBlurred)
	assert.EqualValues(t, 1, s.TextMatches)
	assert.EqualValues(t, 2, s.DetectorErrors)
	assert.EqualValues(t, 1, s.OCRFailures)
	assert.EqualValues(t, 1, s.OCRTimeouts)
	assert.EqualValues(t, 3, s.OCRDropped)
	assert.EqualValues(t, 1, s.OCRAbandoned)
	assert.Equal(t, model.CategoryCounts{Detected: 2, Blurred: 1}, s.Categories[model.CategoryFace])
	assert.Equal(t, model.CategoryCounts{Detected: 1, Blurred: 1}, s.Categories[model.CategoryDocument])

	s.Categories[model.CategoryFace] = model.CategoryCounts{}
	assert.EqualValues(t, 2, a.Snapshot().Categories[model.CategoryFace].Detected, "snapshot is a copy")
}

func TestRun_FlushesEveryNFrames(t *testing.T) {
	p := &fakePersister{}
	a := runAggregator(t, Config{FlushInterval: time.Hour, FlushFrames: 3, FlushTimeout: time.Second}, p)

	for i := 0; i < 3; i++ {
		a.Record(outcome())
	}
	require.Eventually(t, func() bool { return len(p.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, p.all()[0].FramesProcessed)
}

func TestRun_FlushesOnInterval(t *testing.T) {
	p := &fakePersister{}
	a := runAggregator(t, Config{FlushInterval: 10 * time.Millisecond, FlushFrames: 1000, FlushTimeout: time.Second}, p)
	a.Record(outcome())

	require.Eventually(t, func() bool { return len(p.all()) >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_FailureRetriedAtNextCheckpoint(t *testing.T) {
	p := &fakePersister{fail: 1}
	a := runAggregator(t, Config{FlushInterval: time.Hour, FlushFrames: 1, FlushTimeout: time.Second}, p)

	a.Record(outcome())
	require.Eventually(t, func() bool { return a.Snapshot().FlushFailures == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, p.all())

	a.Record(outcome())
	require.Eventually(t, func() bool { return len(p.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	got := p.all()[0]
	assert.EqualValues(t, 2, got.FramesProcessed)
	assert.EqualValues(t, 1, got.FlushFailures)
}

func TestRecord_NeverBlocksOnSlowPersister(t *testing.T) {
	p := &fakePersister{block: make(chan struct{})}
	defer close(p.block)
	a := runAggregator(t, Config{FlushInterval: time.Hour, FlushFrames: 1, FlushTimeout: time.Minute}, p)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			a.Record(outcome())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked behind a slow flush")
	}
	assert.EqualValues(t, 1000, a.Snapshot().FramesProcessed)
}

func TestClose_FinalFlush(t *testing.T) {
	p := &fakePersister{}
	a := NewAggregator(DefaultConfig(), "cam", p, logger.Discard())
	a.Record(outcome())

	require.NoError(t, a.Close(context.Background()))
	flushes := p.all()
	require.Len(t, flushes, 1)
	assert.False(t, flushes[0].EndedAt.IsZero())
	assert.EqualValues(t, 1, flushes[0].FramesProcessed)

	a.Record(outcome())
	assert.EqualValues(t, 1, a.Snapshot().FramesProcessed, "closed sessions ignore new frames")
	require.NoError(t, a.Close(context.Background()))
	assert.Len(t, p.all(), 1)
}

func TestClose_ReportsFlushFailure(t *testing.T) {
	p := &fakePersister{fail: 1}
	a := NewAggregator(DefaultConfig(), "cam", p, logger.Discard())

	err := a.Close(context.Background())
	require.ErrorIs(t, err, model.ErrFlushFailed)
	assert.EqualValues(t, 1, a.Snapshot().FlushFailures)
}
