package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
)

// Config tunes the coordinator.
type Config struct {
	// Timeout bounds a single detector call.
	Timeout time.Duration
	// Workers limits how many detectors run at once (0 = unlimited).
	Workers int
	// NMSIOU is the overlap above which hits of one category are merged.
	NMSIOU float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 200 * time.Millisecond,
		Workers: len(model.Categories),
		NMSIOU:  0.45,
	}
}

// Result is the merged output of one frame.
type Result struct {
	Regions []model.DetectedRegion
	// Counts holds the surviving hits per category.
	Counts map[model.Category]int
	// Failed lists categories whose detector was unavailable this frame.
	Failed []model.Category
}

// Coordinator runs the per-category detectors over a frame.
type Coordinator struct {
	cfg       Config
	detectors map[model.Category]Detector
	errors    map[model.Category]*atomic.Int64
	logger    *logger.Logger
}

// NewCoordinator registers one detector per category. A later detector for
// the same category replaces an earlier one.
func NewCoordinator(cfg Config, logger *logger.Logger, detectors ...Detector) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		detectors: make(map[model.Category]Detector),
		errors:    make(map[model.Category]*atomic.Int64, len(model.Categories)),
		logger:    logger,
	}
	for _, cat := range model.Categories {
		c.errors[cat] = &atomic.Int64{}
	}
	for _, d := range detectors {
		c.detectors[d.Category()] = d
	}
	return c
}

// Errors returns how many times the category's detector has been unavailable.
func (c *Coordinator) Errors(category model.Category) int64 {
	if counter, ok := c.errors[category]; ok {
		return counter.Load()
	}
	return 0
}

// Detect runs the detectors of the enabled categories concurrently and merges
// their hits in canonical category order. minConfidence gives the per-category
// floor; missing entries mean no floor. Detector failures never fail the
// frame; only cancellation of ctx does.
func (c *Coordinator) Detect(ctx context.Context, frame *model.Frame, enabled []model.Category, minConfidence map[model.Category]float64) (Result, error) {
	if err := frame.Validate(); err != nil {
		return Result{}, err
	}

	perCategory := make([][]model.DetectedRegion, len(model.Categories))
	failed := make([]bool, len(model.Categories))
	want := make(map[model.Category]bool, len(enabled))
	for _, cat := range enabled {
		want[cat] = true
	}

	var g errgroup.Group
	if c.cfg.Workers > 0 {
		g.SetLimit(c.cfg.Workers)
	}
	for i, cat := range model.Categories {
		if !want[cat] {
			continue
		}
		i, cat := i, cat
		g.Go(func() error {
			regions, err := c.runOne(ctx, cat, frame.Image)
			if err != nil {
				if ctx.Err() == nil {
					c.errors[cat].Add(1)
					c.logger.Warning("Detector for %s skipped on %s#%d: %v", cat, frame.Stream, frame.Index, err)
				}
				failed[i] = true
				return nil
			}
			regions = normalize(regions, cat, frame.Bounds(), minConfidence[cat], cat.String())
			perCategory[i] = SuppressNonMax(regions, c.cfg.NMSIOU)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("detection of %s#%d: %w", frame.Stream, frame.Index, model.ErrStreamDeactivated)
	}

	res := Result{Counts: make(map[model.Category]int)}
	for i, cat := range model.Categories {
		if failed[i] {
			res.Failed = append(res.Failed, cat)
			continue
		}
		if n := len(perCategory[i]); n > 0 {
			res.Counts[cat] = n
			res.Regions = append(res.Regions, perCategory[i]...)
		}
	}
	return res, nil
}

type detectResult struct {
	regions []model.DetectedRegion
	err     error
}

// runOne calls a detector with a deadline. A detector that ignores its
// context is abandoned when the deadline passes; its late result is dropped.
func (c *Coordinator) runOne(ctx context.Context, cat model.Category, img *image.RGBA) ([]model.DetectedRegion, error) {
	d, ok := c.detectors[cat]
	if !ok {
		return nil, fmt.Errorf("no detector registered for %s: %w", cat, model.ErrDetectorUnavailable)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	done := make(chan detectResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- detectResult{err: fmt.Errorf("%s panicked: %v", d.Name(), r)}
			}
		}()
		regions, err := d.Detect(ctx, img)
		done <- detectResult{regions: regions, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, model.ErrDetectorUnavailable) {
				return nil, res.err
			}
			return nil, fmt.Errorf("%s: %w: %v", d.Name(), model.ErrDetectorUnavailable, res.err)
		}
		return res.regions, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %v", d.Name(), model.ErrDetectorUnavailable, ctx.Err())
	}
}
