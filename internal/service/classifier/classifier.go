package classifier

import (
	"privacyblur/internal/model"
)

// Classify decides how region is rendered under profile. The result depends
// only on the region's category, its cached text verdict and the profile's
// rule, so calling it twice gives the same answer. ok is false when the
// region stays visible.
func Classify(region *model.TrackedRegion, profile *model.Profile) (decision model.BlurDecision, ok bool) {
	if region == nil {
		return model.BlurDecision{}, false
	}
	rule := profile.Rule(region.Category)

	decision = model.BlurDecision{
		RegionID: region.ID,
		Category: region.Category,
		Rect:     region.Bounds(),
	}

	if region.Text.Matched {
		decision.Forced = true
		decision.Intensity = rule.EscalatedIntensity()
		decision.Technique = rule.Technique
		if decision.Technique == model.TechniqueNone && profile != nil {
			decision.Technique = profile.TextTechnique
		}
		if decision.Technique == model.TechniqueNone {
			decision.Technique = model.TechniqueBlur
		}
		decision.Terms = append([]string(nil), region.Text.Terms...)
		return decision, true
	}

	if !rule.Enabled || rule.Technique == model.TechniqueNone {
		return model.BlurDecision{}, false
	}
	decision.Technique = rule.Technique
	decision.Intensity = clampIntensity(rule.Intensity)
	return decision, true
}

// ClassifyAll classifies regions in order, skipping the ones left visible.
func ClassifyAll(regions []*model.TrackedRegion, profile *model.Profile) []model.BlurDecision {
	var out []model.BlurDecision
	for _, r := range regions {
		if d, ok := Classify(r, profile); ok {
			out = append(out, d)
		}
	}
	return out
}

func clampIntensity(v float64) float64 {
	switch {
	case v <= 0:
		return model.MaxIntensity
	case v > model.MaxIntensity:
		return model.MaxIntensity
	}
	return v
}
