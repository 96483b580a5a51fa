package ai

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"privacyblur/internal/model"
	"privacyblur/internal/service/detection"
)

// contourConfidence is reported for outline hits, which carry no score.
const contourConfidence = 0.6

// ContourModel finds four-cornered outlines and sorts them into cards,
// documents, screens and plates by their proportions.
type ContourModel struct {
	pass sharedPass
}

func NewContourModel() *ContourModel {
	return &ContourModel{}
}

// Detector returns the view of the model for one category.
func (m *ContourModel) Detector(category model.Category) detection.Detector {
	return &contourView{model: m, category: category}
}

func (m *ContourModel) detectAll(img *image.RGBA) ([]model.DetectedRegion, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, err
	}
	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault); err != nil {
		return nil, err
	}
	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(blurred, &edges, 50, 150); err != nil {
		return nil, err
	}

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	origin := img.Bounds().Min
	var hits []model.DetectedRegion
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, 0.02*peri, true)
		corners := approx.Size()
		approx.Close()
		if corners != 4 {
			continue
		}
		rect := gocv.BoundingRect(contour)
		category, ok := detection.ClassifyOutline(rect)
		if !ok {
			continue
		}
		hits = append(hits, model.DetectedRegion{
			Rect:       rect.Add(origin),
			Category:   category,
			Confidence: contourConfidence,
			Detector:   "contour",
		})
	}
	return hits, nil
}

type contourView struct {
	model    *ContourModel
	category model.Category
}

func (v *contourView) Name() string { return "contour-" + v.category.String() }

func (v *contourView) Category() model.Category { return v.category }

func (v *contourView) Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := v.model.pass.get(img, func() ([]model.DetectedRegion, error) {
		return v.model.detectAll(img)
	})
	if err != nil {
		return nil, err
	}
	return filter(hits, v.category), nil
}
