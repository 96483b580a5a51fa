package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"privacyblur/internal/model"
)

// ProfileRepository implements repository.ProfileStore and
// repository.ProfileWriter for SQLite.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new SQLite profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// SaveProfile inserts or replaces a profile and all of its rules.
func (r *ProfileRepository) SaveProfile(p model.Profile) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO profiles (name, description, keyword_list, text_technique)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			keyword_list = excluded.keyword_list,
			text_technique = excluded.text_technique
	`, p.Name, p.Description, p.KeywordList, p.TextTechnique.String()); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM profile_rules WHERE profile = ?`, p.Name); err != nil {
		return fmt.Errorf("failed to clear profile rules: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO profile_rules (profile, category, enabled, technique, intensity, max_intensity, min_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, cat := range model.Categories {
		rule, ok := p.Categories[cat]
		if !ok {
			continue
		}
		if _, err := stmt.Exec(p.Name, cat.String(), rule.Enabled, rule.Technique.String(),
			rule.Intensity, rule.MaxIntensity, rule.MinConfidence); err != nil {
			return fmt.Errorf("failed to save %s rule: %w", cat, err)
		}
	}

	return tx.Commit()
}

// SaveKeywordList replaces a keyword list, keeping its order.
func (r *ProfileRepository) SaveKeywordList(name string, keywords []string) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM keyword_lists WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear keyword list: %w", err)
	}
	for i, kw := range keywords {
		if _, err := tx.Exec(`INSERT INTO keyword_lists (name, position, keyword) VALUES (?, ?, ?)`, name, i, kw); err != nil {
			return fmt.Errorf("failed to insert keyword: %w", err)
		}
	}
	return tx.Commit()
}

// Profile retrieves a profile by name.
func (r *ProfileRepository) Profile(name string) (model.Profile, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p := model.Profile{Name: name, Categories: make(map[model.Category]model.CategoryRule)}
	var textTechnique string
	err := r.db.Conn().QueryRow(`
		SELECT description, keyword_list, text_technique FROM profiles WHERE name = ?
	`, name).Scan(&p.Description, &p.KeywordList, &textTechnique)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, fmt.Errorf("%q: %w", name, model.ErrProfileNotFound)
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	if p.TextTechnique, err = model.ParseTechnique(textTechnique); err != nil {
		return model.Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}

	rows, err := r.db.Conn().Query(`
		SELECT category, enabled, technique, intensity, max_intensity, min_confidence
		FROM profile_rules WHERE profile = ?
	`, name)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to query profile rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category, technique string
			rule                model.CategoryRule
		)
		if err := rows.Scan(&category, &rule.Enabled, &technique, &rule.Intensity, &rule.MaxIntensity, &rule.MinConfidence); err != nil {
			return model.Profile{}, fmt.Errorf("failed to scan profile rule: %w", err)
		}
		cat, err := model.ParseCategory(category)
		if err != nil {
			return model.Profile{}, fmt.Errorf("profile %q: %w", name, err)
		}
		if rule.Technique, err = model.ParseTechnique(technique); err != nil {
			return model.Profile{}, fmt.Errorf("profile %q: %w", name, err)
		}
		p.Categories[cat] = rule
	}
	if err := rows.Err(); err != nil {
		return model.Profile{}, fmt.Errorf("failed to iterate profile rules: %w", err)
	}

	return p, nil
}

// KeywordList returns the keywords of a list in their stored order. Unknown
// lists are empty.
func (r *ProfileRepository) KeywordList(name string) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT keyword FROM keyword_lists WHERE name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// ProfileNames lists the stored profiles alphabetically.
func (r *ProfileRepository) ProfileNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan profile name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
