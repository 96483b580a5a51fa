package app

import (
	"io"

	"privacyblur/internal/config"
	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/service/ai"
	"privacyblur/internal/service/detection"
)

// buildDetectors loads every available backend and combines them into one
// detector per category. A backend that fails to load is skipped; a
// category left without backends is reported by the coordinator.
func buildDetectors(cfg *config.Config, log *logger.Logger) ([]detection.Detector, []io.Closer) {
	members := make(map[model.Category][]detection.Detector)
	var closers []io.Closer

	if cascade, err := ai.NewCascadeDetector(cfg.FaceCascadePath); err != nil {
		log.Warning("Could not load face cascade: %v", err)
	} else {
		members[model.CategoryFace] = append(members[model.CategoryFace], cascade)
		closers = append(closers, cascade)
	}

	if dnn, err := ai.NewDNNModel(cfg.DNNModelPath, cfg.DNNConfigPath, log); err != nil {
		log.Warning("Could not initialize detection network: %v", err)
	} else {
		for _, c := range []model.Category{model.CategoryFace, model.CategoryDocument, model.CategoryCard, model.CategoryScreen} {
			members[c] = append(members[c], dnn.Detector(c))
		}
		closers = append(closers, dnn)
	}

	contours := ai.NewContourModel()
	for _, c := range []model.Category{model.CategoryDocument, model.CategoryCard, model.CategoryPlate, model.CategoryScreen} {
		members[c] = append(members[c], contours.Detector(c))
	}

	var out []detection.Detector
	for _, c := range model.Categories {
		switch len(members[c]) {
		case 0:
			log.Warning("No detector available for %s", c)
		case 1:
			out = append(out, members[c][0])
		default:
			out = append(out, detection.NewMulti(c.String(), c, members[c]...))
		}
	}
	return out, closers
}
