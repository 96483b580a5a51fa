package model

import "image"

// BlurDecision says how one tracked region is rendered in one frame.
type BlurDecision struct {
	RegionID  uint64
	Category  Category
	Technique Technique
	Intensity float64
	Rect      image.Rectangle
	// Forced is set when a keyword match overrode the category rule.
	Forced bool
	Terms  []string
}
