package ai

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"privacyblur/internal/model"
)

// sharedPass runs one analysis per frame for several category views. The
// first view to ask for a frame runs the analysis; the others reuse it.
type sharedPass struct {
	mu   sync.Mutex
	last *image.RGBA
	hits []model.DetectedRegion
	err  error
}

func (p *sharedPass) get(img *image.RGBA, run func() ([]model.DetectedRegion, error)) ([]model.DetectedRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != img {
		p.hits, p.err = run()
		p.last = img
	}
	return p.hits, p.err
}

func filter(hits []model.DetectedRegion, category model.Category) []model.DetectedRegion {
	var out []model.DetectedRegion
	for _, h := range hits {
		if h.Category == category {
			out = append(out, h)
		}
	}
	return out
}

// toMat converts a frame to a BGR Mat. The caller closes it.
func toMat(img *image.RGBA) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("converted frame is empty")
	}
	return mat, nil
}
