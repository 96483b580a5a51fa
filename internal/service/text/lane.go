package text

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
)

// LaneConfig bounds the OCR lane.
type LaneConfig struct {
	Backlog int
	Workers int
	Timeout time.Duration
}

// DefaultLaneConfig returns the documented defaults.
func DefaultLaneConfig() LaneConfig {
	return LaneConfig{Backlog: 4, Workers: 1, Timeout: 2 * time.Second}
}

// Request asks for the text verdict of one tracked region. Crop must be owned
// by the request.
type Request struct {
	RegionID uint64
	Seq      uint64
	Crop     *image.RGBA
	Keywords []string
}

// Result answers a Request. Err is nil, or wraps ErrOCRTimeout or ErrOCRFailure.
type Result struct {
	RegionID    uint64
	Seq         uint64
	Sensitivity model.TextSensitivity
	Err         error
}

// LaneStats are the cumulative lane counters.
type LaneStats struct {
	Submitted int64
	Dropped   int64
	Abandoned int64
	Completed int64
	Failures  int64
	Timeouts  int64
}

type job struct {
	req Request
	ctx context.Context
}

// Lane runs text analysis off the frame path. Submit never blocks: when the
// backlog is full the request is dropped. Results are collected with Drain.
type Lane struct {
	cfg      LaneConfig
	logger   *logger.Logger
	jobs     chan job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc // by Seq
	results  []Result
	stopped  bool

	submitted atomic.Int64
	dropped   atomic.Int64
	abandoned atomic.Int64
	completed atomic.Int64
	failures  atomic.Int64
	timeouts  atomic.Int64
}

// NewLane starts cfg.Workers workers, each with its own engine from factory.
func NewLane(ctx context.Context, cfg LaneConfig, factory EngineFactory, matcher *Matcher, logger *logger.Logger) (*Lane, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Backlog < 1 {
		cfg.Backlog = 1
	}

	engines := make([]Engine, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		engine, err := factory()
		if err != nil {
			for _, e := range engines {
				e.Close()
			}
			return nil, fmt.Errorf("failed to create ocr engine: %w", err)
		}
		engines = append(engines, engine)
	}

	laneCtx, cancel := context.WithCancel(ctx)
	l := &Lane{
		cfg:      cfg,
		logger:   logger,
		jobs:     make(chan job, cfg.Backlog),
		ctx:      laneCtx,
		cancel:   cancel,
		inflight: make(map[uint64]context.CancelFunc),
	}
	for _, engine := range engines {
		l.wg.Add(1)
		go l.worker(NewAnalyzer(engine, matcher), engine)
	}
	return l, nil
}

// Submit queues req and reports whether it was accepted.
func (l *Lane) Submit(req Request) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.inflight[req.Seq] = cancel
	l.mu.Unlock()

	select {
	case l.jobs <- job{req: req, ctx: ctx}:
		l.submitted.Add(1)
		return true
	default:
		l.mu.Lock()
		delete(l.inflight, req.Seq)
		l.mu.Unlock()
		cancel()
		l.dropped.Add(1)
		return false
	}
}

// Abandon cancels request seq. Its result, if any, is discarded.
func (l *Lane) Abandon(seq uint64) {
	l.mu.Lock()
	cancel, ok := l.inflight[seq]
	delete(l.inflight, seq)
	l.mu.Unlock()
	if ok {
		cancel()
		l.abandoned.Add(1)
	}
}

// Drain returns the results completed since the last call.
func (l *Lane) Drain() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.results
	l.results = nil
	return out
}

// Stats returns a snapshot of the counters.
func (l *Lane) Stats() LaneStats {
	return LaneStats{
		Submitted: l.submitted.Load(),
		Dropped:   l.dropped.Load(),
		Abandoned: l.abandoned.Load(),
		Completed: l.completed.Load(),
		Failures:  l.failures.Load(),
		Timeouts:  l.timeouts.Load(),
	}
}

// Stop cancels every queued and running request and waits for the workers.
func (l *Lane) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.inflight = make(map[uint64]context.CancelFunc)
	l.results = nil
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}

func (l *Lane) worker(analyzer *Analyzer, engine Engine) {
	defer l.wg.Done()
	defer func() {
		if err := engine.Close(); err != nil {
			l.logger.Warning("Failed to close ocr engine: %v", err)
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return
		case j := <-l.jobs:
			l.process(analyzer, j)
		}
	}
}

func (l *Lane) process(analyzer *Analyzer, j job) {
	if j.ctx.Err() != nil {
		return
	}

	ctx := j.ctx
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(j.ctx, l.cfg.Timeout)
		defer cancel()
	}

	sensitivity, err := analyzer.Analyze(ctx, j.req.Crop, j.req.Keywords)

	l.mu.Lock()
	defer l.mu.Unlock()
	cancel, live := l.inflight[j.req.Seq]
	if !live {
		// abandoned or lane stopped
		return
	}
	delete(l.inflight, j.req.Seq)
	cancel()

	switch {
	case errors.Is(err, model.ErrOCRTimeout):
		l.timeouts.Add(1)
	case err != nil:
		l.failures.Add(1)
		l.logger.Warning("Text analysis of region %d failed: %v", j.req.RegionID, err)
	default:
		l.completed.Add(1)
	}
	l.results = append(l.results, Result{
		RegionID:    j.req.RegionID,
		Seq:         j.req.Seq,
		Sensitivity: sensitivity,
		Err:         err,
	})
}
