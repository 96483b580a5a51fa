package tracker

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/model"
	"privacyblur/internal/service/text"
)

type fakeLane struct {
	reject    bool
	submitted []text.Request
	abandoned []uint64
	pending   []text.Result
}

func (f *fakeLane) Submit(req text.Request) bool {
	if f.reject {
		return false
	}
	f.submitted = append(f.submitted, req)
	return true
}

func (f *fakeLane) Drain() []text.Result {
	out := f.pending
	f.pending = nil
	return out
}

func (f *fakeLane) Abandon(seq uint64) {
	f.abandoned = append(f.abandoned, seq)
}

func grayFrame(index uint64) *model.Frame {
	img := image.NewRGBA(bounds)
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return &model.Frame{Stream: "cam", Index: index, Image: img}
}

var docBox = image.Rect(100, 100, 300, 250)

func textTracker() *Tracker {
	cfg := DefaultConfig()
	cfg.Text.Interval = 3
	return New(cfg)
}

func step(tr *Tracker, s State, lane *fakeLane, frame *model.Frame, box image.Rectangle) (State, TextReport) {
	s, _ = tr.Update(s, frame.Index, []model.DetectedRegion{det(model.CategoryDocument, box, 0.9)}, frame.Bounds())
	report := tr.ConsultText(&s, frame, lane, []string{"confidential"})
	return s, report
}

func TestConsultText_SchedulesAndApplies(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}

	first := grayFrame(1)
	s, report := step(tr, State{}, lane, first, docBox)
	require.Len(t, lane.submitted, 1)
	assert.Equal(t, 1, report.Submitted)
	req := lane.submitted[0]
	assert.Equal(t, s.Regions[0].ID, req.RegionID)
	assert.Equal(t, uint64(1), req.Seq)
	assert.Equal(t, docBox.Size(), req.Crop.Bounds().Size())
	assert.Equal(t, []string{"confidential"}, req.Keywords)
	assert.Equal(t, req.Seq, s.Regions[0].Text.Pending)

	// the crop is a copy
	req.Crop.Pix[0] = 1
	assert.Equal(t, uint8(128), first.Image.Pix[first.Image.PixOffset(docBox.Min.X, docBox.Min.Y)])

	lane.pending = []text.Result{{
		RegionID:    req.RegionID,
		Seq:         req.Seq,
		Sensitivity: model.TextSensitivity{Matched: true, Terms: []string{"confidential"}},
	}}
	s, report = step(tr, s, lane, grayFrame(2), docBox)
	assert.Zero(t, report.Submitted)
	v := s.Regions[0].Text
	assert.True(t, v.Analyzed)
	assert.True(t, v.Matched)
	assert.False(t, v.Stale)
	assert.Zero(t, v.Pending)

	s, _ = step(tr, s, lane, grayFrame(3), docBox)
	assert.Len(t, lane.submitted, 1)
	s, report = step(tr, s, lane, grayFrame(4), docBox)
	assert.Len(t, lane.submitted, 2)
	assert.Equal(t, 1, report.Submitted)
	assert.True(t, s.Regions[0].Text.Matched, "cached verdict survives a new request")
}

func TestConsultText_AbandonsOverdueRequest(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}

	var s State
	for f := uint64(1); f <= 4; f++ {
		var report TextReport
		s, report = step(tr, s, lane, grayFrame(f), docBox)
		if f == 4 {
			assert.Equal(t, 1, report.Abandoned)
		}
	}
	require.Len(t, lane.submitted, 2)
	assert.Equal(t, []uint64{1}, lane.abandoned)
	assert.Equal(t, uint64(2), s.Regions[0].Text.Pending)
	assert.True(t, s.Regions[0].Text.Stale)

	// late answer for the abandoned request is ignored
	lane.pending = []text.Result{{RegionID: s.Regions[0].ID, Seq: 1, Sensitivity: model.TextSensitivity{Matched: true}}}
	s, report := step(tr, s, lane, grayFrame(5), docBox)
	assert.Equal(t, 1, report.Late)
	assert.False(t, s.Regions[0].Text.Matched)
	assert.Equal(t, uint64(2), s.Regions[0].Text.Pending)
}

func TestConsultText_ContentChangeTriggersEarlySample(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}

	s, _ := step(tr, State{}, lane, grayFrame(1), docBox)
	require.Len(t, lane.submitted, 1)

	taller := image.Rect(100, 100, 300, 320)
	s, _ = step(tr, s, lane, grayFrame(2), taller)
	assert.Len(t, lane.submitted, 2)
	assert.Equal(t, []uint64{1}, lane.abandoned)
	assert.Equal(t, uint64(2), s.Regions[0].Text.SampledAt)
}

func TestConsultText_HashChangeTriggersEarlySample(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}

	s, _ := step(tr, State{}, lane, grayFrame(1), docBox)
	lane.pending = []text.Result{{RegionID: s.Regions[0].ID, Seq: 1}}
	s, _ = step(tr, s, lane, grayFrame(2), docBox)
	require.Len(t, lane.submitted, 1)

	frame := grayFrame(3)
	for y := docBox.Min.Y; y < docBox.Max.Y; y++ {
		for x := docBox.Min.X; x < (docBox.Min.X+docBox.Max.X)/2; x++ {
			frame.Image.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	s, _ = step(tr, s, lane, frame, docBox)
	assert.Len(t, lane.submitted, 2)
	assert.True(t, s.Regions[0].Text.Stale)
}

func TestConsultText_DropCounted(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{reject: true}

	s, report := step(tr, State{}, lane, grayFrame(1), docBox)
	assert.Equal(t, 1, report.Dropped)
	assert.Zero(t, s.Regions[0].Text.Pending)
	assert.True(t, s.Regions[0].Text.Sampled)
}

func TestConsultText_FailuresKeepCachedVerdict(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}

	s, _ := step(tr, State{}, lane, grayFrame(1), docBox)
	id := s.Regions[0].ID
	lane.pending = []text.Result{{RegionID: id, Seq: 1, Sensitivity: model.TextSensitivity{Matched: true, Terms: []string{"confidential"}}}}
	s, _ = step(tr, s, lane, grayFrame(2), docBox)
	s, _ = step(tr, s, lane, grayFrame(3), docBox)
	s, _ = step(tr, s, lane, grayFrame(4), docBox)
	require.Len(t, lane.submitted, 2)

	lane.pending = []text.Result{{RegionID: id, Seq: 2, Err: fmt.Errorf("%w: deadline", model.ErrOCRTimeout)}}
	s, report := step(tr, s, lane, grayFrame(5), docBox)
	assert.Equal(t, 1, report.Timeouts)
	assert.True(t, s.Regions[0].Text.Matched)
	assert.Zero(t, s.Regions[0].Text.Pending)
}

func TestConsultText_IgnoresNonTextCategories(t *testing.T) {
	tr := textTracker()
	lane := &fakeLane{}
	s, _ := tr.Update(State{}, 1, []model.DetectedRegion{det(model.CategoryFace, docBox, 0.9)}, bounds)
	report := tr.ConsultText(&s, grayFrame(1), lane, []string{"confidential"})
	assert.Zero(t, report.Submitted)
	assert.Empty(t, lane.submitted)
}

func TestAbandonExpired(t *testing.T) {
	lane := &fakeLane{}
	expired := []*model.TrackedRegion{
		{ID: 1, Text: model.TextVerdict{Pending: 4}},
		{ID: 2},
	}
	assert.Equal(t, 1, AbandonExpired(lane, expired))
	assert.Equal(t, []uint64{4}, lane.abandoned)
}
