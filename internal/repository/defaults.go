package repository

import "privacyblur/internal/model"

// DefaultProfileName is used when no profile is configured.
const DefaultProfileName = "Default Privacy"

// StandardKeywordList is the keyword list of the stock profiles.
const StandardKeywordList = "Standard Keywords"

func rule(t model.Technique, intensity float64) model.CategoryRule {
	return model.CategoryRule{
		Enabled:       t != model.TechniqueNone,
		Technique:     t,
		Intensity:     intensity,
		MaxIntensity:  model.MaxIntensity,
		MinConfidence: 0.5,
	}
}

// DefaultProfiles returns the stock profiles.
func DefaultProfiles() []model.Profile {
	return []model.Profile{
		{
			Name:          "Default Privacy",
			Description:   "Default privacy settings for general use",
			KeywordList:   StandardKeywordList,
			TextTechnique: model.TechniqueBlur,
			Categories: map[model.Category]model.CategoryRule{
				model.CategoryFace:     rule(model.TechniquePixelate, 0.6),
				model.CategoryDocument: rule(model.TechniqueBlur, 0.7),
				model.CategoryCard:     rule(model.TechniquePixelate, 0.8),
				model.CategoryPlate:    rule(model.TechniquePixelate, 0.8),
				model.CategoryScreen:   rule(model.TechniqueBlur, 0.6),
			},
		},
		{
			Name:          "High Privacy",
			Description:   "Maximum privacy settings with pixelation for all objects",
			KeywordList:   StandardKeywordList,
			TextTechnique: model.TechniquePixelate,
			Categories: map[model.Category]model.CategoryRule{
				model.CategoryFace:     rule(model.TechniquePixelate, 1),
				model.CategoryDocument: rule(model.TechniquePixelate, 1),
				model.CategoryCard:     rule(model.TechniquePixelate, 1),
				model.CategoryPlate:    rule(model.TechniquePixelate, 1),
				model.CategoryScreen:   rule(model.TechniquePixelate, 1),
			},
		},
		{
			Name:          "Professional Call",
			Description:   "Settings for professional video calls with face visible",
			KeywordList:   StandardKeywordList,
			TextTechnique: model.TechniqueBlur,
			Categories: map[model.Category]model.CategoryRule{
				model.CategoryFace:     rule(model.TechniqueNone, 0),
				model.CategoryDocument: rule(model.TechniqueBlur, 0.7),
				model.CategoryCard:     rule(model.TechniquePixelate, 0.8),
				model.CategoryPlate:    rule(model.TechniquePixelate, 0.8),
				model.CategoryScreen:   rule(model.TechniqueBlur, 0.6),
			},
		},
	}
}

// DefaultKeywordLists returns the stock keyword lists by name.
func DefaultKeywordLists() map[string][]string {
	return map[string][]string{
		StandardKeywordList: {
			"confidential", "private", "secret", "password",
			"visa", "mastercard", "american express", "cvv",
			"ssn", "social security", "classified",
		},
		"Financial Keywords": {
			"account number", "routing number", "pin", "balance",
			"statement", "credit score", "loan", "mortgage", "investment",
			"tax id", "ein", "w2", "w-2", "1099", "bank account",
		},
		"Healthcare Keywords": {
			"patient", "diagnosis", "medical record", "prescription",
			"treatment", "symptoms", "health insurance", "hipaa",
			"doctor", "hospital", "medical id", "medication",
		},
	}
}
