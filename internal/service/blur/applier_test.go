package blur

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/model"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, blue)
			}
		}
	}
	return img
}

func decision(id uint64, tech model.Technique, intensity float64, r image.Rectangle) model.BlurDecision {
	return model.BlurDecision{RegionID: id, Technique: tech, Intensity: intensity, Rect: r}
}

func TestApply_LeavesSourceUntouched(t *testing.T) {
	src := checker(40, 40)
	before := append([]uint8(nil), src.Pix...)

	out := New(DefaultConfig()).Apply(src, []model.BlurDecision{
		decision(1, model.TechniqueFill, 1, image.Rect(5, 5, 30, 30)),
	})
	assert.Equal(t, before, src.Pix)
	assert.NotEqual(t, src.Pix, out.Pix)

	same := New(DefaultConfig()).Apply(src, nil)
	assert.Equal(t, src.Pix, same.Pix)
}

func TestApply_SubImageFrame(t *testing.T) {
	src := checker(40, 40).SubImage(image.Rect(10, 10, 30, 30)).(*image.RGBA)

	out := New(DefaultConfig()).Apply(src, nil)
	require.Equal(t, src.Bounds(), out.Bounds())
	for y := src.Bounds().Min.Y; y < src.Bounds().Max.Y; y++ {
		for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
			require.Equal(t, src.RGBAAt(x, y), out.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}

	filled := New(DefaultConfig()).Apply(src, []model.BlurDecision{
		decision(1, model.TechniqueFill, 1, image.Rect(12, 12, 16, 16)),
	})
	assert.Equal(t, black, filled.RGBAAt(13, 13))
	assert.Equal(t, src.RGBAAt(25, 25), filled.RGBAAt(25, 25))
}

func TestApply_FillWithFeather(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatherPx = 4
	src := solid(50, 50, white)
	rect := image.Rect(10, 10, 30, 30)

	out := New(cfg).Apply(src, []model.BlurDecision{decision(1, model.TechniqueFill, 1, rect)})

	assert.Equal(t, black, out.RGBAAt(10, 10))
	assert.Equal(t, black, out.RGBAAt(29, 29))
	edge := out.RGBAAt(30, 20)
	assert.Greater(t, edge.R, uint8(0))
	assert.Less(t, edge.R, uint8(255))
	assert.Less(t, out.RGBAAt(30, 20).R, out.RGBAAt(32, 20).R, "fades outward")
	assert.Equal(t, white, out.RGBAAt(35, 20))
	assert.Equal(t, white, out.RGBAAt(0, 0))
}

func TestApply_Pixelate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatherPx = 0
	cfg.PixelBlockMax = 8
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), A: 255})
		}
	}

	out := New(cfg).Apply(src, []model.BlurDecision{decision(1, model.TechniquePixelate, 0.5, image.Rect(0, 0, 8, 8))})

	// block of 4: x in 0..3 averages to 15, y likewise
	assert.Equal(t, color.RGBA{R: 15, G: 15, A: 255}, out.RGBAAt(0, 0))
	assert.Equal(t, out.RGBAAt(0, 0), out.RGBAAt(3, 3))
	assert.Equal(t, color.RGBA{R: 55, G: 15, A: 255}, out.RGBAAt(4, 0))
	assert.Equal(t, src.RGBAAt(8, 8), out.RGBAAt(8, 8))
}

func TestApply_MinimumBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatherPx = 0
	src := checker(8, 8)
	out := New(cfg).Apply(src, []model.BlurDecision{decision(1, model.TechniquePixelate, 0.01, image.Rect(0, 0, 8, 8))})
	assert.Equal(t, out.RGBAAt(0, 0), out.RGBAAt(1, 1))
	assert.NotEqual(t, red, out.RGBAAt(0, 0))
}

func TestApply_BlurSmoothsPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatherPx = 0
	cfg.BlurSigmaMax = 4
	src := checker(60, 60)
	out := New(cfg).Apply(src, []model.BlurDecision{decision(1, model.TechniqueBlur, 1, image.Rect(10, 10, 50, 50))})

	c := out.RGBAAt(30, 30)
	assert.InDelta(t, 127, int(c.R), 20)
	assert.InDelta(t, 127, int(c.B), 20)
	assert.Equal(t, src.RGBAAt(5, 5), out.RGBAAt(5, 5))
}

// A card lying on a document: the card is drawn over the document and every
// pixel of the document area is obscured, with no original pixels between
// the two areas.
func TestApply_NestedRegionDrawnLastWithoutSeam(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlurSigmaMax = 4
	src := checker(200, 200)
	doc := image.Rect(20, 20, 180, 180)
	card := image.Rect(60, 60, 120, 100)

	decisions := []model.BlurDecision{
		decision(2, model.TechniqueBlur, 1, card),
		decision(1, model.TechniqueFill, 1, doc),
	}
	applier := New(cfg)
	out := applier.Apply(src, decisions)

	center := out.RGBAAt(90, 80)
	assert.Greater(t, center.R, uint8(60), "card effect is on top")
	assert.Greater(t, center.B, uint8(60))
	assert.Equal(t, black, out.RGBAAt(30, 30))

	for y := doc.Min.Y; y < doc.Max.Y; y++ {
		for x := doc.Min.X; x < doc.Max.X; x++ {
			c := out.RGBAAt(x, y)
			require.False(t, c == red || c == blue, "original pixel leaks at %d,%d", x, y)
		}
	}

	reversed := applier.Apply(src, []model.BlurDecision{decisions[1], decisions[0]})
	assert.Equal(t, out.Pix, reversed.Pix)
}

func TestClusters(t *testing.T) {
	a := New(DefaultConfig())
	bounds := image.Rect(0, 0, 100, 100)

	clusters := a.clusters(bounds, []model.BlurDecision{
		decision(5, model.TechniqueBlur, 0.5, image.Rect(0, 0, 20, 20)),
		decision(3, model.TechniqueBlur, 0.5, image.Rect(10, 10, 40, 40)),
		decision(4, model.TechniqueBlur, 0.7, image.Rect(10, 10, 40, 40)),
		decision(6, model.TechniquePixelate, 0.5, image.Rect(60, 60, 70, 70)),
		decision(7, model.TechniqueNone, 1, image.Rect(0, 0, 100, 100)),
		decision(8, model.TechniqueFill, 1, image.Rect(200, 200, 210, 210)),
	})
	require.Len(t, clusters, 3)
	assert.Equal(t, image.Rect(0, 0, 40, 40), clusters[0].bounds)
	assert.Equal(t, uint64(3), clusters[0].minID)
	assert.Len(t, clusters[0].rects, 2)
	assert.Equal(t, uint64(4), clusters[1].minID)
	assert.Equal(t, model.TechniquePixelate, clusters[2].technique)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#10ff20")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x10, G: 0xff, B: 0x20, A: 255}, c)

	_, err = ParseHexColor("fff")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)
}
