package tracker

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"privacyblur/internal/model"
	"privacyblur/internal/service/text"
)

// TextLane is the OCR lane as seen by the tracker.
type TextLane interface {
	Submit(req text.Request) bool
	Drain() []text.Result
	Abandon(seq uint64)
}

// TextReport counts what ConsultText did for one frame.
type TextReport struct {
	Submitted int
	Dropped   int
	Abandoned int
	Failures  int
	Timeouts  int
	// Late counts results that arrived for abandoned requests or gone regions.
	Late int
}

// ConsultText brings the text verdicts of state up to date for frame. It
// applies finished lane results, then sends every text-bearing region seen in
// this frame whose sample point has come to the lane. A request still pending
// at the next sample point is abandoned and the cached verdict is kept,
// marked stale. Regions of state are updated in place.
func (t *Tracker) ConsultText(state *State, frame *model.Frame, lane TextLane, keywords []string) TextReport {
	var report TextReport
	if lane == nil {
		return report
	}

	byID := make(map[uint64]*model.TrackedRegion, len(state.Regions))
	for _, r := range state.Regions {
		byID[r.ID] = r
	}

	for _, res := range lane.Drain() {
		r, ok := byID[res.RegionID]
		if !ok || r.Text.Pending == 0 || r.Text.Pending != res.Seq {
			report.Late++
			continue
		}
		r.Text.Pending = 0
		switch {
		case errors.Is(res.Err, model.ErrOCRTimeout):
			report.Timeouts++
		case res.Err != nil:
			report.Failures++
		default:
			r.Text.TextSensitivity = res.Sensitivity
			r.Text.Analyzed = true
			r.Text.Stale = false
		}
	}

	for _, r := range state.Regions {
		if !r.Category.TextBearing() || r.MatchedAt != frame.Index {
			continue
		}
		rect := r.Bounds().Intersect(frame.Bounds())
		if rect.Empty() {
			continue
		}

		hash := text.AverageHash(frame.Image.SubImage(rect))
		area := model.Area(rect)
		changed := r.Text.Sampled && t.contentChanged(r.Text, hash, area)
		if !t.due(r.Text, frame.Index, changed) {
			continue
		}

		if r.Text.Pending != 0 {
			lane.Abandon(r.Text.Pending)
			r.Text.Pending = 0
			r.Text.Stale = true
			report.Abandoned++
		}
		if changed && r.Text.Analyzed {
			r.Text.Stale = true
		}
		r.Text.Sampled = true
		r.Text.SampledAt = frame.Index
		r.Text.Hash = hash
		r.Text.Area = area

		state.NextSeq++
		req := text.Request{
			RegionID: r.ID,
			Seq:      state.NextSeq,
			Crop:     copyCrop(frame.Image, rect),
			Keywords: keywords,
		}
		if lane.Submit(req) {
			r.Text.Pending = req.Seq
			report.Submitted++
		} else {
			report.Dropped++
		}
	}

	return report
}

// AbandonExpired cancels the pending text requests of expired regions.
func AbandonExpired(lane TextLane, expired []*model.TrackedRegion) int {
	if lane == nil {
		return 0
	}
	n := 0
	for _, r := range expired {
		if r.Text.Pending != 0 {
			lane.Abandon(r.Text.Pending)
			r.Text.Pending = 0
			n++
		}
	}
	return n
}

func (t *Tracker) due(v model.TextVerdict, frame uint64, changed bool) bool {
	if !v.Sampled || changed {
		return true
	}
	interval := uint64(1)
	if t.cfg.Text.Interval > 1 {
		interval = uint64(t.cfg.Text.Interval)
	}
	return frame >= v.SampledAt+interval
}

func (t *Tracker) contentChanged(v model.TextVerdict, hash uint64, area int) bool {
	if text.Hamming(v.Hash, hash) > t.cfg.Text.HashDistance {
		return true
	}
	if v.Area == 0 {
		return area != 0
	}
	delta := math.Abs(float64(area-v.Area)) / float64(v.Area)
	return delta > t.cfg.Text.AreaDelta
}

func copyCrop(src *image.RGBA, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}
