package model

import "time"

// CategoryCounts are the per-category session counters.
type CategoryCounts struct {
	Detected int64 `json:"detected"`
	Blurred  int64 `json:"blurred"`
}

// SessionStats is the cumulative record of one stream session.
type SessionStats struct {
	SessionID       string                      `json:"session_id"`
	Stream          string                      `json:"stream"`
	StartedAt       time.Time                   `json:"started_at"`
	EndedAt         time.Time                   `json:"ended_at,omitempty"`
	FramesProcessed int64                       `json:"frames_processed"`
	FramesSkipped   int64                       `json:"frames_skipped"`
	RegionsBlurred  int64                       `json:"regions_blurred"`
	TextMatches     int64                       `json:"text_matches"`
	DetectorErrors  int64                       `json:"detector_errors"`
	OCRFailures     int64                       `json:"ocr_failures"`
	OCRTimeouts     int64                       `json:"ocr_timeouts"`
	OCRDropped      int64                       `json:"ocr_dropped"`
	OCRAbandoned    int64                       `json:"ocr_abandoned"`
	FlushFailures   int64                       `json:"flush_failures"`
	Categories      map[Category]CategoryCounts `json:"categories"`
}

// Duration is the session length, measured to now while it is still open.
func (s SessionStats) Duration() time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// FrameOutcome is what one pipeline pass reports to the stats aggregator.
type FrameOutcome struct {
	Stream    string
	Index     uint64
	Timestamp time.Time
	// Skipped is set for corrupt frames; every other field is then empty.
	Skipped        bool
	Detected       map[Category]int
	Decisions      []BlurDecision
	TextMatches    int
	DetectorErrors int
	OCRFailures    int
	OCRTimeouts    int
	OCRDropped     int
	OCRAbandoned   int
}
