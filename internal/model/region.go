package model

import (
	"fmt"
	"image"
)

// DetectedRegion is a single detector hit for one frame.
type DetectedRegion struct {
	Rect       image.Rectangle
	Category   Category
	Confidence float64
	Detector   string
}

// RegionState is the lifecycle state of a tracked region.
type RegionState int

const (
	StateNew RegionState = iota
	StateConfirmed
	StateFading
	StateExpired
)

func (s RegionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConfirmed:
		return "confirmed"
	case StateFading:
		return "fading"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TextSensitivity is the outcome of matching extracted text against keywords.
type TextSensitivity struct {
	Matched bool
	Terms   []string
}

// TextVerdict is the cached text analysis of a tracked region.
type TextVerdict struct {
	TextSensitivity

	// Analyzed is false until the first OCR result arrives.
	Analyzed bool
	// Sampled is set once the region has reached its first sample point.
	Sampled bool
	// Stale marks a verdict whose region changed or whose sample point passed
	// without a fresh result.
	Stale bool
	// SampledAt is the frame index of the last sample point.
	SampledAt uint64
	// Hash and Area describe the region content at the last sample point.
	Hash uint64
	Area int
	// Pending is the sequence number of the request in flight, 0 if none.
	Pending uint64
}

// TrackedRegion is an object followed across frames.
type TrackedRegion struct {
	ID             uint64
	Category       Category
	Rect           RectF
	State          RegionState
	Matches        int
	Misses         int
	LastConfidence float64
	// MatchedAt is the index of the last frame a detection was matched.
	MatchedAt uint64
	Text      TextVerdict
}

// Bounds returns the smoothed rectangle rounded to pixels.
func (r *TrackedRegion) Bounds() image.Rectangle {
	return r.Rect.Rect()
}
