package yamlstore

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"privacyblur/internal/model"
)

// document is the on-disk layout of the profiles file.
type document struct {
	KeywordLists map[string][]string `yaml:"keyword_lists"`
	Profiles     []profileDoc        `yaml:"profiles"`
}

type profileDoc struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description,omitempty"`
	KeywordList   string             `yaml:"keyword_list,omitempty"`
	TextTechnique string             `yaml:"text_technique,omitempty"`
	Categories    map[string]ruleDoc `yaml:"categories"`
}

type ruleDoc struct {
	Enabled       bool    `yaml:"enabled"`
	Technique     string  `yaml:"technique"`
	Intensity     float64 `yaml:"intensity"`
	MaxIntensity  float64 `yaml:"max_intensity,omitempty"`
	MinConfidence float64 `yaml:"min_confidence,omitempty"`
}

// Decode parses a profiles file.
func Decode(data []byte) ([]model.Profile, map[string][]string, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse profiles: %w", err)
	}

	seen := make(map[string]bool, len(doc.Profiles))
	profiles := make([]model.Profile, 0, len(doc.Profiles))
	for _, pd := range doc.Profiles {
		if pd.Name == "" {
			return nil, nil, fmt.Errorf("profile without name")
		}
		if seen[pd.Name] {
			return nil, nil, fmt.Errorf("duplicate profile %q", pd.Name)
		}
		seen[pd.Name] = true

		p := model.Profile{
			Name:        pd.Name,
			Description: pd.Description,
			KeywordList: pd.KeywordList,
			Categories:  make(map[model.Category]model.CategoryRule, len(pd.Categories)),
		}
		var err error
		if p.TextTechnique, err = model.ParseTechnique(pd.TextTechnique); err != nil {
			return nil, nil, fmt.Errorf("profile %q: %w", pd.Name, err)
		}
		for name, rd := range pd.Categories {
			cat, err := model.ParseCategory(name)
			if err != nil {
				return nil, nil, fmt.Errorf("profile %q: %w", pd.Name, err)
			}
			tech, err := model.ParseTechnique(rd.Technique)
			if err != nil {
				return nil, nil, fmt.Errorf("profile %q, %s: %w", pd.Name, name, err)
			}
			if rd.Intensity < 0 || rd.Intensity > model.MaxIntensity || rd.MaxIntensity < 0 || rd.MaxIntensity > model.MaxIntensity {
				return nil, nil, fmt.Errorf("profile %q, %s: intensity out of range", pd.Name, name)
			}
			p.Categories[cat] = model.CategoryRule{
				Enabled:       rd.Enabled,
				Technique:     tech,
				Intensity:     rd.Intensity,
				MaxIntensity:  rd.MaxIntensity,
				MinConfidence: rd.MinConfidence,
			}
		}
		profiles = append(profiles, p)
	}

	keywords := make(map[string][]string, len(doc.KeywordLists))
	for name, words := range doc.KeywordLists {
		keywords[name] = append([]string(nil), words...)
	}
	return profiles, keywords, nil
}

// Encode renders profiles and keyword lists in the file layout.
func Encode(profiles []model.Profile, keywords map[string][]string) ([]byte, error) {
	doc := document{KeywordLists: keywords}
	for _, p := range profiles {
		pd := profileDoc{
			Name:          p.Name,
			Description:   p.Description,
			KeywordList:   p.KeywordList,
			TextTechnique: p.TextTechnique.String(),
			Categories:    make(map[string]ruleDoc, len(p.Categories)),
		}
		for c, r := range p.Categories {
			pd.Categories[c.String()] = ruleDoc{
				Enabled:       r.Enabled,
				Technique:     r.Technique.String(),
				Intensity:     r.Intensity,
				MaxIntensity:  r.MaxIntensity,
				MinConfidence: r.MinConfidence,
			}
		}
		doc.Profiles = append(doc.Profiles, pd)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode profiles: %w", err)
	}
	return data, nil
}
