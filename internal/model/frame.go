package model

import (
	"fmt"
	"image"
	"time"
)

// Frame is one captured picture of a stream. It is never modified after capture.
type Frame struct {
	Stream    string
	Index     uint64
	Timestamp time.Time
	Image     *image.RGBA
}

// Bounds returns the pixel bounds of the frame, or the empty rectangle.
func (f *Frame) Bounds() image.Rectangle {
	if f == nil || f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Validate rejects frames the pipeline cannot process.
func (f *Frame) Validate() error {
	if f == nil || f.Image == nil {
		return fmt.Errorf("frame has no image: %w", ErrCorruptFrame)
	}
	b := f.Image.Bounds()
	if b.Empty() {
		return fmt.Errorf("frame %d has empty bounds: %w", f.Index, ErrCorruptFrame)
	}
	if len(f.Image.Pix) < f.Image.PixOffset(b.Max.X-1, b.Max.Y-1)+4 {
		return fmt.Errorf("frame %d pixel buffer truncated: %w", f.Index, ErrCorruptFrame)
	}
	return nil
}
