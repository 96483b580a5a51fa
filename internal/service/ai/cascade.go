package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"privacyblur/internal/model"
)

// cascadeConfidence is reported for every cascade hit; Haar cascades give no score.
const cascadeConfidence = 0.75

// CascadeDetector finds faces with a Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade file at path.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("cascade file not found: %s", path)
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade: %s", path)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) Name() string { return "cascade" }

func (d *CascadeDetector) Category() model.Category { return model.CategoryFace }

// Detect runs the cascade over the gray frame.
func (d *CascadeDetector) Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 4, 0, image.Pt(30, 30), image.Pt(0, 0))
	d.mu.Unlock()

	hits := make([]model.DetectedRegion, 0, len(rects))
	for _, r := range rects {
		hits = append(hits, model.DetectedRegion{
			Rect:       r.Add(img.Bounds().Min),
			Category:   model.CategoryFace,
			Confidence: cascadeConfidence,
			Detector:   d.Name(),
		})
	}
	return hits, nil
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
