package detection

import (
	"image"

	"privacyblur/internal/model"
)

// COCO class ids of the SSD MobileNet model that map to sensitive categories.
const (
	cocoPerson    = 1
	cocoTV        = 72
	cocoLaptop    = 73
	cocoCellPhone = 77
	cocoBook      = 84
)

// ClassifyOutline sorts a four-cornered outline into a category by size and
// aspect ratio. ok is false for shapes that fit no category.
func ClassifyOutline(r image.Rectangle) (model.Category, bool) {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return 0, false
	}
	aspect := float64(w) / float64(h)

	if w < 50 || h < 50 {
		// too small for a card or page, but a plate is wide and short
		if aspect >= 2 && aspect <= 6 && w > 60 && h > 20 {
			return model.CategoryPlate, true
		}
		return 0, false
	}

	switch {
	case aspect >= 1.4 && aspect <= 1.7:
		return model.CategoryCard, true
	case aspect >= 0.7 && aspect < 1.4 && w > 100 && h > 100:
		return model.CategoryDocument, true
	case aspect > 1.7 && aspect <= 2.5:
		return model.CategoryScreen, true
	case aspect > 2.5:
		return model.CategoryPlate, true
	}
	return 0, false
}

// FromCOCO turns a COCO detection into a sensitive region. People become the
// face in the top third of their box; phones and books become cards when
// they have a card's proportions and documents otherwise.
func FromCOCO(classID int, r image.Rectangle, confidence float64) (model.DetectedRegion, bool) {
	region := model.DetectedRegion{Rect: r, Confidence: confidence, Detector: "dnn"}
	switch classID {
	case cocoPerson:
		region.Category = model.CategoryFace
		region.Rect.Max.Y = r.Min.Y + r.Dy()/3
	case cocoTV, cocoLaptop:
		region.Category = model.CategoryScreen
	case cocoCellPhone, cocoBook:
		region.Category = model.CategoryDocument
		if h := r.Dy(); h > 0 {
			if aspect := float64(r.Dx()) / float64(h); aspect >= 1.4 && aspect <= 1.7 {
				region.Category = model.CategoryCard
			}
		}
	default:
		return model.DetectedRegion{}, false
	}
	if region.Rect.Empty() {
		return model.DetectedRegion{}, false
	}
	return region, true
}
