package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
)

// Persister stores session checkpoints. Flush receives the cumulative stats,
// so writing the same session twice must replace the earlier record.
type Persister interface {
	Flush(ctx context.Context, stats model.SessionStats) error
}

// Config controls checkpoints.
type Config struct {
	FlushInterval time.Duration
	FlushFrames   int
	FlushTimeout  time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 30 * time.Second,
		FlushFrames:   300,
		FlushTimeout:  5 * time.Second,
	}
}

// Aggregator accumulates the statistics of one stream session and
// checkpoints them to a Persister in the background.
type Aggregator struct {
	cfg       Config
	logger    *logger.Logger
	persister Persister

	mu         sync.Mutex
	stats      model.SessionStats
	sinceFlush int
	closed     bool

	flushMu sync.Mutex
	signal  chan struct{}
}

// NewAggregator opens a session for stream. persister may be nil.
func NewAggregator(cfg Config, stream string, persister Persister, logger *logger.Logger) *Aggregator {
	return &Aggregator{
		cfg:       cfg,
		logger:    logger,
		persister: persister,
		stats: model.SessionStats{
			SessionID:  uuid.NewString(),
			Stream:     stream,
			StartedAt:  time.Now(),
			Categories: make(map[model.Category]model.CategoryCounts),
		},
		signal: make(chan struct{}, 1),
	}
}

// Run flushes on every interval tick and on every frame-count checkpoint
// until ctx is done.
func (a *Aggregator) Run(ctx context.Context) {
	var tick <-chan time.Time
	if a.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(a.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			a.flush(ctx)
		case <-a.signal:
			a.flush(ctx)
		}
	}
}

// Record adds one frame outcome. It never blocks on persistence.
func (a *Aggregator) Record(out model.FrameOutcome) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	s := &a.stats
	if out.Skipped {
		s.FramesSkipped++
	} else {
		s.FramesProcessed++
		for cat, n := range out.Detected {
			counts := s.Categories[cat]
			counts.Detected += int64(n)
			s.Categories[cat] = counts
		}
		for _, d := range out.Decisions {
			counts := s.Categories[d.Category]
			counts.Blurred++
			s.Categories[d.Category] = counts
		}
		s.RegionsBlurred += int64(len(out.Decisions))
	}
	s.TextMatches += int64(out.TextMatches)
	s.DetectorErrors += int64(out.DetectorErrors)
	s.OCRFailures += int64(out.OCRFailures)
	s.OCRTimeouts += int64(out.OCRTimeouts)
	s.OCRDropped += int64(out.OCRDropped)
	s.OCRAbandoned += int64(out.OCRAbandoned)

	a.sinceFlush++
	checkpoint := a.cfg.FlushFrames > 0 && a.sinceFlush >= a.cfg.FlushFrames
	if checkpoint {
		a.sinceFlush = 0
	}
	a.mu.Unlock()

	if checkpoint {
		select {
		case a.signal <- struct{}{}:
		default:
			// a flush is already due
		}
	}
}

// Snapshot returns a copy of the current statistics.
func (a *Aggregator) Snapshot() model.SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() model.SessionStats {
	out := a.stats
	out.Categories = make(map[model.Category]model.CategoryCounts, len(a.stats.Categories))
	for c, n := range a.stats.Categories {
		out.Categories[c] = n
	}
	return out
}

// Close ends the session and writes the final record.
func (a *Aggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.stats.EndedAt = time.Now()
	a.mu.Unlock()

	return a.flush(ctx)
}

func (a *Aggregator) flush(ctx context.Context) error {
	if a.persister == nil {
		return nil
	}
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	snapshot := a.Snapshot()

	if a.cfg.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.FlushTimeout)
		defer cancel()
	}

	if err := a.persister.Flush(ctx, snapshot); err != nil {
		a.mu.Lock()
		a.stats.FlushFailures++
		a.mu.Unlock()
		a.logger.Warning("Failed to flush stats of session %s (%s): %v", snapshot.SessionID, snapshot.Stream, err)
		return fmt.Errorf("session %s: %w: %v", snapshot.SessionID, model.ErrFlushFailed, err)
	}
	return nil
}
