package model

import (
	"fmt"
	"strings"
)

// Technique is the way a region is obscured.
type Technique int

const (
	TechniqueNone Technique = iota
	TechniquePixelate
	TechniqueBlur
	TechniqueFill
)

func (t Technique) String() string {
	switch t {
	case TechniqueNone:
		return "none"
	case TechniquePixelate:
		return "pixelate"
	case TechniqueBlur:
		return "blur"
	case TechniqueFill:
		return "fill"
	}
	return fmt.Sprintf("technique(%d)", int(t))
}

// ParseTechnique maps rule names to techniques. "gaussian" and
// "edge_preserving" from older rule sets both render as a spatial blur.
func ParseTechnique(s string) (Technique, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TechniqueNone, nil
	case "pixelate", "pixelation":
		return TechniquePixelate, nil
	case "blur", "gaussian", "edge_preserving":
		return TechniqueBlur, nil
	case "fill", "opaque":
		return TechniqueFill, nil
	}
	return TechniqueNone, fmt.Errorf("unknown technique %q", s)
}

func (t Technique) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Technique) UnmarshalText(text []byte) error {
	parsed, err := ParseTechnique(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
