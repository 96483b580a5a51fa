package detection

import (
	"image"
	"sort"

	"privacyblur/internal/model"
)

// SuppressNonMax merges hits whose IOU exceeds threshold, keeping the most
// confident box of each overlapping group. Equal confidences keep the earlier hit.
func SuppressNonMax(regions []model.DetectedRegion, threshold float64) []model.DetectedRegion {
	if len(regions) < 2 {
		return regions
	}

	order := make([]int, len(regions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return regions[order[a]].Confidence > regions[order[b]].Confidence
	})

	kept := make([]model.DetectedRegion, 0, len(regions))
	for _, idx := range order {
		candidate := regions[idx]
		suppressed := false
		for _, k := range kept {
			if model.IOU(candidate.Rect, k.Rect) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// normalize clips hits to the frame, fixes their category and drops empty or
// low-confidence boxes.
func normalize(regions []model.DetectedRegion, category model.Category, bounds image.Rectangle, minConfidence float64, detector string) []model.DetectedRegion {
	out := make([]model.DetectedRegion, 0, len(regions))
	for _, r := range regions {
		r.Rect = r.Rect.Canon().Intersect(bounds)
		if r.Rect.Empty() {
			continue
		}
		if r.Confidence < minConfidence {
			continue
		}
		if r.Confidence > 1 {
			r.Confidence = 1
		}
		r.Category = category
		if r.Detector == "" {
			r.Detector = detector
		}
		out = append(out, r)
	}
	return out
}
