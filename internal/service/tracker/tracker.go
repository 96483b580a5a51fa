package tracker

import (
	"image"
	"sort"

	"privacyblur/internal/model"
)

// Config is the hysteresis policy.
type Config struct {
	// MatchIOU is the minimum overlap for a detection to continue a region.
	MatchIOU float64
	// Smoothing is the weight of the new box in the moving average.
	Smoothing float64
	// ConfirmFrames is the number of matches that promote New to Confirmed.
	ConfirmFrames int
	// FadeMisses is the number of misses after which Confirmed becomes Fading.
	FadeMisses int
	// ExpiryMisses is the number of misses after which a region is removed.
	ExpiryMisses int

	Text TextPolicy
}

// TextPolicy decides when a text-bearing region is sent to OCR again.
type TextPolicy struct {
	// Interval is the number of frames between sample points.
	Interval int
	// HashDistance is the average-hash distance that counts as new content.
	HashDistance int
	// AreaDelta is the relative area change that counts as new content.
	AreaDelta float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MatchIOU:      0.5,
		Smoothing:     0.6,
		ConfirmFrames: 3,
		FadeMisses:    2,
		ExpiryMisses:  10,
		Text: TextPolicy{
			Interval:     15,
			HashDistance: 10,
			AreaDelta:    0.25,
		},
	}
}

// State is everything the tracker remembers about one stream. It is owned by
// the stream's goroutine and threaded through Update.
type State struct {
	Regions []*model.TrackedRegion
	// NextID is the last identifier handed out; identifiers are never reused.
	NextID uint64
	// NextSeq is the last text request sequence number handed out.
	NextSeq uint64
	// Frame is the index of the frame of the last Update.
	Frame uint64
}

// Tracker applies Config to tracker states.
type Tracker struct {
	cfg Config
}

func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

func (t *Tracker) Config() Config {
	return t.cfg
}

type pair struct {
	tracked    int
	candidate  int
	iou        float64
	confidence float64
	id         uint64
}

// Update matches the candidates of frame against state and returns the new
// state plus the regions that expired in this step. The input state is not
// modified.
func (t *Tracker) Update(state State, frame uint64, candidates []model.DetectedRegion, bounds image.Rectangle) (State, []*model.TrackedRegion) {
	next := State{NextID: state.NextID, NextSeq: state.NextSeq, Frame: frame}
	regions := make([]*model.TrackedRegion, len(state.Regions))
	for i, r := range state.Regions {
		c := *r
		regions[i] = &c
	}

	var pairs []pair
	for i, r := range regions {
		for j, c := range candidates {
			if c.Category != r.Category {
				continue
			}
			iou := model.IOUF(r.Rect, model.RectFFrom(c.Rect))
			if iou < t.cfg.MatchIOU || iou == 0 {
				continue
			}
			pairs = append(pairs, pair{tracked: i, candidate: j, iou: iou, confidence: c.Confidence, id: r.ID})
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if pa.iou != pb.iou {
			return pa.iou > pb.iou
		}
		if pa.confidence != pb.confidence {
			return pa.confidence > pb.confidence
		}
		if pa.id != pb.id {
			return pa.id < pb.id
		}
		return pa.candidate < pb.candidate
	})

	trackedUsed := make([]bool, len(regions))
	candidateUsed := make([]bool, len(candidates))
	for _, p := range pairs {
		if trackedUsed[p.tracked] || candidateUsed[p.candidate] {
			continue
		}
		trackedUsed[p.tracked] = true
		candidateUsed[p.candidate] = true
		t.matched(regions[p.tracked], candidates[p.candidate], frame, bounds)
	}

	var expired []*model.TrackedRegion
	for i, r := range regions {
		if trackedUsed[i] {
			next.Regions = append(next.Regions, r)
			continue
		}
		r.Misses++
		switch {
		case r.Misses > t.cfg.ExpiryMisses:
			r.State = model.StateExpired
			expired = append(expired, r)
			continue
		case r.State == model.StateConfirmed && r.Misses > t.cfg.FadeMisses:
			r.State = model.StateFading
		}
		next.Regions = append(next.Regions, r)
	}

	for j, c := range candidates {
		if candidateUsed[j] {
			continue
		}
		next.NextID++
		r := &model.TrackedRegion{
			ID:             next.NextID,
			Category:       c.Category,
			Rect:           model.RectFFrom(c.Rect).Clamp(bounds),
			State:          model.StateNew,
			Matches:        1,
			LastConfidence: c.Confidence,
			MatchedAt:      frame,
		}
		if t.cfg.ConfirmFrames <= 1 {
			r.State = model.StateConfirmed
		}
		next.Regions = append(next.Regions, r)
	}

	return next, expired
}

func (t *Tracker) matched(r *model.TrackedRegion, c model.DetectedRegion, frame uint64, bounds image.Rectangle) {
	r.Rect = r.Rect.Lerp(model.RectFFrom(c.Rect), t.cfg.Smoothing).Clamp(bounds)
	r.Matches++
	r.Misses = 0
	r.LastConfidence = c.Confidence
	r.MatchedAt = frame

	switch r.State {
	case model.StateNew:
		if r.Matches >= t.cfg.ConfirmFrames {
			r.State = model.StateConfirmed
		}
	case model.StateFading:
		r.State = model.StateConfirmed
	case model.StateConfirmed, model.StateExpired:
	}
}

// Visible returns the regions to classify for the state's frame: every
// Confirmed and Fading region, and New regions seen in this frame.
func Visible(state State) []*model.TrackedRegion {
	var out []*model.TrackedRegion
	for _, r := range state.Regions {
		switch r.State {
		case model.StateConfirmed, model.StateFading:
			out = append(out, r)
		case model.StateNew:
			if r.MatchedAt == state.Frame {
				out = append(out, r)
			}
		case model.StateExpired:
		}
	}
	return out
}
