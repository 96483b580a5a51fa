package model

// MaxIntensity is the strongest intensity a rule can ask for.
const MaxIntensity = 1.0

// CategoryRule controls how one category is handled by a profile.
type CategoryRule struct {
	Enabled   bool
	Technique Technique
	// Intensity is the normal strength in (0, 1].
	Intensity float64
	// MaxIntensity is used when a keyword match escalates the region.
	MaxIntensity float64
	// MinConfidence drops detections below this score.
	MinConfidence float64
}

// EscalatedIntensity is the intensity used for keyword-forced blurs.
func (r CategoryRule) EscalatedIntensity() float64 {
	if r.MaxIntensity > 0 {
		return r.MaxIntensity
	}
	return MaxIntensity
}

// Profile is a named bundle of per-category rules.
type Profile struct {
	Name        string
	Description string
	KeywordList string
	// TextTechnique is used for keyword-forced regions whose rule has no technique.
	TextTechnique Technique
	Categories    map[Category]CategoryRule
}

// Rule returns the rule for c; missing categories are disabled.
func (p *Profile) Rule(c Category) CategoryRule {
	if p == nil || p.Categories == nil {
		return CategoryRule{}
	}
	return p.Categories[c]
}

// Enabled lists the enabled categories in canonical order.
func (p *Profile) Enabled() []Category {
	var out []Category
	for _, c := range Categories {
		if p.Rule(c).Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy so callers can never change a stored profile.
func (p Profile) Clone() Profile {
	out := p
	out.Categories = make(map[Category]CategoryRule, len(p.Categories))
	for c, r := range p.Categories {
		out.Categories[c] = r
	}
	return out
}
