package model

import (
	"image"
	"math"
)

// RectF is a rectangle with fractional coordinates, used for smoothed boxes.
type RectF struct {
	MinX, MinY, MaxX, MaxY float64
}

// RectFFrom converts an integer rectangle.
func RectFFrom(r image.Rectangle) RectF {
	return RectF{
		MinX: float64(r.Min.X),
		MinY: float64(r.Min.Y),
		MaxX: float64(r.Max.X),
		MaxY: float64(r.Max.Y),
	}
}

// Rect rounds to the nearest integer rectangle.
func (r RectF) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(r.MinX)),
		int(math.Round(r.MinY)),
		int(math.Round(r.MaxX)),
		int(math.Round(r.MaxY)),
	)
}

func (r RectF) Area() float64 {
	w, h := r.MaxX-r.MinX, r.MaxY-r.MinY
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Lerp moves r towards target by alpha (0 keeps r, 1 jumps to target).
func (r RectF) Lerp(target RectF, alpha float64) RectF {
	return RectF{
		MinX: r.MinX + alpha*(target.MinX-r.MinX),
		MinY: r.MinY + alpha*(target.MinY-r.MinY),
		MaxX: r.MaxX + alpha*(target.MaxX-r.MaxX),
		MaxY: r.MaxY + alpha*(target.MaxY-r.MaxY),
	}
}

// Clamp restricts r to bounds.
func (r RectF) Clamp(bounds image.Rectangle) RectF {
	clamp := func(v, lo, hi float64) float64 {
		return math.Max(lo, math.Min(hi, v))
	}
	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)
	out := RectF{
		MinX: clamp(r.MinX, minX, maxX),
		MinY: clamp(r.MinY, minY, maxY),
		MaxX: clamp(r.MaxX, minX, maxX),
		MaxY: clamp(r.MaxY, minY, maxY),
	}
	if out.MaxX < out.MinX {
		out.MaxX = out.MinX
	}
	if out.MaxY < out.MinY {
		out.MaxY = out.MinY
	}
	return out
}

// IOU returns the intersection over union of two rectangles.
func IOU(a, b image.Rectangle) float64 {
	return IOUF(RectFFrom(a), RectFFrom(b))
}

// IOUF is IOU for fractional rectangles.
func IOUF(a, b RectF) float64 {
	inter := RectF{
		MinX: math.Max(a.MinX, b.MinX),
		MinY: math.Max(a.MinY, b.MinY),
		MaxX: math.Min(a.MaxX, b.MaxX),
		MaxY: math.Min(a.MaxY, b.MaxY),
	}.Area()
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Area returns the pixel area of r.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
