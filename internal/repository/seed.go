package repository

import (
	"fmt"
	"sort"

	"privacyblur/internal/model"
)

// Seed writes profiles and keyword lists into w. Keyword lists are written
// first, in name order, so profiles never reference a missing list.
func Seed(w ProfileWriter, profiles []model.Profile, keywords map[string][]string) error {
	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := w.SaveKeywordList(name, keywords[name]); err != nil {
			return fmt.Errorf("failed to save keyword list %q: %w", name, err)
		}
	}
	for _, p := range profiles {
		if err := w.SaveProfile(p); err != nil {
			return fmt.Errorf("failed to save profile %q: %w", p.Name, err)
		}
	}
	return nil
}
