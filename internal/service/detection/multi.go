package detection

import (
	"context"
	"errors"
	"fmt"
	"image"

	"privacyblur/internal/model"
)

// Multi runs several detectors for one category in turn and concatenates
// their hits. It fails only when every member fails.
type Multi struct {
	name     string
	category model.Category
	members  []Detector
}

func NewMulti(name string, category model.Category, members ...Detector) *Multi {
	return &Multi{name: name, category: category, members: members}
}

func (m *Multi) Name() string { return m.name }

func (m *Multi) Category() model.Category { return m.category }

func (m *Multi) Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error) {
	var (
		hits []model.DetectedRegion
		errs []error
	)
	for _, d := range m.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := d.Detect(ctx, img)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		for _, h := range found {
			h.Category = m.category
			if h.Detector == "" {
				h.Detector = d.Name()
			}
			hits = append(hits, h)
		}
	}
	if len(m.members) > 0 && len(errs) == len(m.members) {
		return nil, errors.Join(errs...)
	}
	return hits, nil
}
