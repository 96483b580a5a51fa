package blur

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"privacyblur/internal/model"
)

// Config tunes rendering.
type Config struct {
	// FeatherPx is the width of the soft edge drawn outside each region.
	FeatherPx int
	// PixelBlockMax is the pixelation block size at intensity 1.
	PixelBlockMax int
	// BlurSigmaMax is the Gaussian sigma at intensity 1.
	BlurSigmaMax float64
	FillColor    color.RGBA
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		FeatherPx:     6,
		PixelBlockMax: 24,
		BlurSigmaMax:  12,
		FillColor:     color.RGBA{A: 255},
	}
}

// ParseHexColor parses "rrggbb" or "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Applier renders blur decisions onto frames.
type Applier struct {
	cfg Config
}

func New(cfg Config) *Applier {
	return &Applier{cfg: cfg}
}

// cluster is a group of overlapping decisions sharing technique and intensity.
type cluster struct {
	technique model.Technique
	intensity float64
	rects     []image.Rectangle
	bounds    image.Rectangle
	minID     uint64
}

// Apply returns a copy of src with every decision rendered. src is not
// modified. Overlapping decisions with the same technique and intensity are
// rendered as one area; larger areas are drawn first so nested regions end up
// on top.
func (a *Applier) Apply(src *image.RGBA, decisions []model.BlurDecision) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	if len(decisions) == 0 {
		return dst
	}

	for _, c := range a.clusters(src.Bounds(), decisions) {
		a.render(dst, src, c)
	}
	return dst
}

func (a *Applier) clusters(bounds image.Rectangle, decisions []model.BlurDecision) []*cluster {
	type item struct {
		d    model.BlurDecision
		rect image.Rectangle
	}
	var items []item
	for _, d := range decisions {
		r := d.Rect.Intersect(bounds)
		if d.Technique == model.TechniqueNone || r.Empty() || d.Intensity <= 0 {
			continue
		}
		items = append(items, item{d: d, rect: r})
	}

	parent := make([]int, len(items))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if !sameEffect(items[i].d, items[j].d) || !items[i].rect.Overlaps(items[j].rect) {
				continue
			}
			if ri, rj := find(i), find(j); ri != rj {
				parent[rj] = ri
			}
		}
	}

	byRoot := make(map[int]*cluster)
	var out []*cluster
	for i, it := range items {
		root := find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &cluster{technique: it.d.Technique, intensity: it.d.Intensity, minID: it.d.RegionID}
			byRoot[root] = c
			out = append(out, c)
		}
		c.rects = append(c.rects, it.rect)
		c.bounds = c.bounds.Union(it.rect)
		if it.d.RegionID < c.minID {
			c.minID = it.d.RegionID
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := model.Area(out[i].bounds), model.Area(out[j].bounds)
		if ai != aj {
			return ai > aj
		}
		return out[i].minID < out[j].minID
	})
	return out
}

func sameEffect(a, b model.BlurDecision) bool {
	return a.Technique == b.Technique && math.Abs(a.Intensity-b.Intensity) < 1e-9
}

// render computes the cluster's effect from the untouched source and
// composites it onto dst through a feathered mask.
func (a *Applier) render(dst, src *image.RGBA, c *cluster) {
	feather := a.cfg.FeatherPx
	if feather < 0 {
		feather = 0
	}
	area := c.bounds.Inset(-feather).Intersect(src.Bounds())
	if area.Empty() {
		return
	}

	effect, origin := a.effect(src, area, c)
	mask := featherMask(area, c.rects, feather)
	draw.DrawMask(dst, area, effect, origin, mask, area.Min, draw.Over)
}

func (a *Applier) effect(src *image.RGBA, area image.Rectangle, c *cluster) (image.Image, image.Point) {
	switch c.technique {
	case model.TechniquePixelate:
		block := int(math.Round(c.intensity * float64(a.cfg.PixelBlockMax)))
		if block < 2 {
			block = 2
		}
		return pixelate(src, area, c.bounds.Min, block), area.Min
	case model.TechniqueBlur:
		sigma := c.intensity * a.cfg.BlurSigmaMax
		if sigma <= 0 {
			return src, area.Min
		}
		// pad so the kernel sees real neighbours at the edges
		padded := area.Inset(-int(math.Ceil(3 * sigma))).Intersect(src.Bounds())
		blurred := imaging.Blur(src.SubImage(padded), sigma)
		return blurred, area.Min.Sub(padded.Min)
	case model.TechniqueFill:
		return image.NewUniform(a.cfg.FillColor), area.Min
	case model.TechniqueNone:
	}
	return src, area.Min
}

// pixelate averages src over blocks aligned to anchor and returns an image
// covering area.
func pixelate(src *image.RGBA, area image.Rectangle, anchor image.Point, block int) *image.RGBA {
	out := image.NewRGBA(area)
	startX := anchor.X - ceilDiv(anchor.X-area.Min.X, block)*block
	startY := anchor.Y - ceilDiv(anchor.Y-area.Min.Y, block)*block

	for by := startY; by < area.Max.Y; by += block {
		for bx := startX; bx < area.Max.X; bx += block {
			cell := image.Rect(bx, by, bx+block, by+block).Intersect(area)
			if cell.Empty() {
				continue
			}
			var r, g, b, al, n int
			for y := cell.Min.Y; y < cell.Max.Y; y++ {
				i := src.PixOffset(cell.Min.X, y)
				for x := cell.Min.X; x < cell.Max.X; x++ {
					r += int(src.Pix[i])
					g += int(src.Pix[i+1])
					b += int(src.Pix[i+2])
					al += int(src.Pix[i+3])
					n++
					i += 4
				}
			}
			avg := color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(al / n)}
			draw.Draw(out, cell, image.NewUniform(avg), image.Point{}, draw.Src)
		}
	}
	return out
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// featherMask is opaque inside rects and fades to transparent over feather
// pixels outside them.
func featherMask(area image.Rectangle, rects []image.Rectangle, feather int) *image.Alpha {
	mask := image.NewAlpha(area)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			d := math.Inf(1)
			for _, r := range rects {
				if dr := distance(r, x, y); dr < d {
					d = dr
				}
				if d == 0 {
					break
				}
			}
			var alpha uint8
			switch {
			case d == 0:
				alpha = 255
			case feather > 0 && d <= float64(feather):
				alpha = uint8(math.Round(255 * (1 - d/float64(feather+1))))
			}
			mask.Pix[mask.PixOffset(x, y)] = alpha
		}
	}
	return mask
}

// distance from pixel (x, y) to the nearest pixel of r.
func distance(r image.Rectangle, x, y int) float64 {
	dx := max(r.Min.X-x, x-(r.Max.X-1), 0)
	dy := max(r.Min.Y-y, y-(r.Max.Y-1), 0)
	if dx == 0 && dy == 0 {
		return 0
	}
	return math.Hypot(float64(dx), float64(dy))
}
