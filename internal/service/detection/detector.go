package detection

import (
	"context"
	"image"

	"privacyblur/internal/model"
)

// Detector finds regions of a single category in a frame. Implementations
// must treat img as read-only; several detectors read the same frame at once.
type Detector interface {
	Name() string
	Category() model.Category
	Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error)
}

// FuncDetector adapts a function to the Detector interface.
type FuncDetector struct {
	ID  string
	Cat model.Category
	Fn  func(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error)
}

func (f *FuncDetector) Name() string { return f.ID }

func (f *FuncDetector) Category() model.Category { return f.Cat }

func (f *FuncDetector) Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error) {
	return f.Fn(ctx, img)
}
