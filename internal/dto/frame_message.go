package dto

import (
	"encoding/base64"
	"time"

	"privacyblur/internal/model"
)

// DecisionInfo describes one obscured region of a rendered frame.
type DecisionInfo struct {
	RegionID  uint64   `json:"region_id"`
	Category  string   `json:"category"`
	Technique string   `json:"technique"`
	Intensity float64  `json:"intensity"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Forced    bool     `json:"forced,omitempty"`
	Terms     []string `json:"terms,omitempty"`
}

// FrameMessage is what viewers receive for every rendered frame.
type FrameMessage struct {
	Camera    string         `json:"camera"`
	Index     uint64         `json:"index"`
	Timestamp time.Time      `json:"timestamp"`
	Image     string         `json:"image"` // base64 JPEG
	Decisions []DecisionInfo `json:"decisions"`
}

// NewFrameMessage builds the viewer message for an encoded frame.
func NewFrameMessage(frame *model.Frame, jpeg []byte, decisions []model.BlurDecision) FrameMessage {
	infos := make([]DecisionInfo, 0, len(decisions))
	for _, d := range decisions {
		infos = append(infos, DecisionInfo{
			RegionID:  d.RegionID,
			Category:  d.Category.String(),
			Technique: d.Technique.String(),
			Intensity: d.Intensity,
			X:         d.Rect.Min.X,
			Y:         d.Rect.Min.Y,
			Width:     d.Rect.Dx(),
			Height:    d.Rect.Dy(),
			Forced:    d.Forced,
			Terms:     d.Terms,
		})
	}
	return FrameMessage{
		Camera:    frame.Stream,
		Index:     frame.Index,
		Timestamp: frame.Timestamp,
		Image:     base64.StdEncoding.EncodeToString(jpeg),
		Decisions: infos,
	}
}
