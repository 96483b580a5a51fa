package model

import (
	"fmt"
	"strings"
)

// Category identifies the kind of sensitive object a region contains.
type Category int

const (
	CategoryFace Category = iota
	CategoryDocument
	CategoryCard
	CategoryPlate
	CategoryScreen
)

// Categories lists every category in the fixed order used when merging
// per-detector results.
var Categories = []Category{
	CategoryFace,
	CategoryDocument,
	CategoryCard,
	CategoryPlate,
	CategoryScreen,
}

func (c Category) String() string {
	switch c {
	case CategoryFace:
		return "face"
	case CategoryDocument:
		return "document"
	case CategoryCard:
		return "card"
	case CategoryPlate:
		return "plate"
	case CategoryScreen:
		return "screen"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// TextBearing reports whether regions of this category are worth running OCR on.
func (c Category) TextBearing() bool {
	switch c {
	case CategoryDocument, CategoryScreen:
		return true
	case CategoryFace, CategoryCard, CategoryPlate:
		return false
	}
	return false
}

// ParseCategory accepts the canonical names plus the aliases used by older
// rule sets ("credit_card", "license_plate").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "face":
		return CategoryFace, nil
	case "document":
		return CategoryDocument, nil
	case "card", "credit_card":
		return CategoryCard, nil
	case "plate", "license_plate":
		return CategoryPlate, nil
	case "screen":
		return CategoryScreen, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
