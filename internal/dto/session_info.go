package dto

import (
	"encoding/json"
	"time"

	"privacyblur/internal/model"
)

// SessionInfo is the API view of a stream session.
type SessionInfo struct {
	model.SessionStats
	Active bool `json:"active"`
}

// MarshalJSON adds formatted start, end and duration fields.
func (s SessionInfo) MarshalJSON() ([]byte, error) {
	type Alias SessionInfo
	end := ""
	if !s.EndedAt.IsZero() {
		end = s.EndedAt.Format("02-01-2006 15:04:05")
	}
	return json.Marshal(&struct {
		Started  string  `json:"started"`
		Ended    string  `json:"ended,omitempty"`
		Duration float64 `json:"duration_seconds"`
		Alias
	}{
		Started:  s.StartedAt.Format("02-01-2006 15:04:05"),
		Ended:    end,
		Duration: s.Duration().Round(time.Second).Seconds(),
		Alias:    (Alias)(s),
	})
}
