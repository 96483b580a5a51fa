package tracker

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/model"
)

var bounds = image.Rect(0, 0, 640, 480)

func det(cat model.Category, r image.Rectangle, conf float64) model.DetectedRegion {
	return model.DetectedRegion{Rect: r, Category: cat, Confidence: conf}
}

func face(x, y int) model.DetectedRegion {
	return det(model.CategoryFace, image.Rect(x, y, x+100, y+100), 0.9)
}

func run(tr *Tracker, state State, frame uint64, candidates ...model.DetectedRegion) State {
	next, _ := tr.Update(state, frame, candidates, bounds)
	return next
}

func TestUpdate_RetainsIDWhileMissesBelowExpiry(t *testing.T) {
	tr := New(DefaultConfig())
	var s State
	frame := uint64(0)
	for i := 0; i < 3; i++ {
		frame++
		s = run(tr, s, frame, face(100, 100))
	}
	require.Len(t, s.Regions, 1)
	id := s.Regions[0].ID
	assert.Equal(t, model.StateConfirmed, s.Regions[0].State)

	for i := 0; i < tr.Config().ExpiryMisses; i++ {
		frame++
		s = run(tr, s, frame)
	}
	require.Len(t, s.Regions, 1)
	assert.Equal(t, model.StateFading, s.Regions[0].State)
	assert.Equal(t, tr.Config().ExpiryMisses, s.Regions[0].Misses)

	frame++
	s = run(tr, s, frame, face(102, 101))
	require.Len(t, s.Regions, 1)
	assert.Equal(t, id, s.Regions[0].ID)
	assert.Equal(t, model.StateConfirmed, s.Regions[0].State)
	assert.Zero(t, s.Regions[0].Misses)
}

func TestUpdate_ExpiresAndNeverReusesIDs(t *testing.T) {
	tr := New(DefaultConfig())
	s := run(tr, State{}, 1, face(100, 100))
	first := s.Regions[0].ID

	var expired []*model.TrackedRegion
	frame := uint64(1)
	for i := 0; i <= tr.Config().ExpiryMisses; i++ {
		frame++
		var gone []*model.TrackedRegion
		s, gone = tr.Update(s, frame, nil, bounds)
		expired = append(expired, gone...)
	}
	assert.Empty(t, s.Regions)
	require.Len(t, expired, 1)
	assert.Equal(t, first, expired[0].ID)
	assert.Equal(t, model.StateExpired, expired[0].State)

	frame++
	s = run(tr, s, frame, face(100, 100))
	require.Len(t, s.Regions, 1)
	assert.Greater(t, s.Regions[0].ID, first)
}

func TestUpdate_FadesAfterFadeMisses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfirmFrames = 1
	tr := New(cfg)

	s := run(tr, State{}, 1, face(0, 0))
	require.Equal(t, model.StateConfirmed, s.Regions[0].State)

	for f := uint64(2); f <= uint64(2+cfg.FadeMisses-1); f++ {
		s = run(tr, s, f)
		assert.Equal(t, model.StateConfirmed, s.Regions[0].State)
	}
	s = run(tr, s, uint64(2+cfg.FadeMisses))
	assert.Equal(t, model.StateFading, s.Regions[0].State)
	assert.Len(t, Visible(s), 1)
}

func TestUpdate_TieBreaks(t *testing.T) {
	tr := New(DefaultConfig())
	box := image.Rect(10, 10, 60, 60)

	t.Run("lower tracked id wins", func(t *testing.T) {
		s := run(tr, State{}, 1,
			det(model.CategoryFace, box, 0.9),
			det(model.CategoryFace, box, 0.9),
		)
		require.Len(t, s.Regions, 2)

		s = run(tr, s, 2, det(model.CategoryFace, box, 0.9))
		assert.Equal(t, 2, s.Regions[0].Matches)
		assert.Equal(t, 1, s.Regions[1].Matches)
		assert.Equal(t, 1, s.Regions[1].Misses)
	})

	t.Run("higher confidence wins", func(t *testing.T) {
		s := run(tr, State{}, 1, det(model.CategoryFace, box, 0.9))
		s = run(tr, s, 2,
			det(model.CategoryFace, box, 0.5),
			det(model.CategoryFace, box, 0.8),
		)
		require.Len(t, s.Regions, 2)
		assert.Equal(t, 0.8, s.Regions[0].LastConfidence)
		assert.Equal(t, 0.5, s.Regions[1].LastConfidence)
		assert.Equal(t, model.StateNew, s.Regions[1].State)
	})

	t.Run("lower candidate index wins", func(t *testing.T) {
		s := run(tr, State{}, 1, det(model.CategoryFace, box, 0.9))
		s = run(tr, s, 2,
			det(model.CategoryFace, box, 0.7),
			det(model.CategoryFace, box.Add(image.Pt(0, 0)), 0.7),
		)
		require.Len(t, s.Regions, 2)
		assert.Equal(t, uint64(1), s.Regions[0].ID)
		assert.Equal(t, uint64(2), s.Regions[1].ID)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		candidates := []model.DetectedRegion{
			det(model.CategoryFace, image.Rect(0, 0, 50, 50), 0.6),
			det(model.CategoryFace, image.Rect(5, 5, 55, 55), 0.6),
			det(model.CategoryFace, image.Rect(2, 2, 52, 52), 0.6),
		}
		base := run(tr, State{}, 1, candidates[:2]...)
		first := run(tr, base, 2, candidates...)
		for i := 0; i < 10; i++ {
			again := run(tr, base, 2, candidates...)
			require.Equal(t, len(first.Regions), len(again.Regions))
			for j := range first.Regions {
				assert.Equal(t, *first.Regions[j], *again.Regions[j])
			}
		}
	})
}

func TestUpdate_CategoriesDoNotMatchEachOther(t *testing.T) {
	tr := New(DefaultConfig())
	box := image.Rect(10, 10, 60, 60)
	s := run(tr, State{}, 1, det(model.CategoryDocument, box, 0.9))
	s = run(tr, s, 2, det(model.CategoryScreen, box, 0.9))
	require.Len(t, s.Regions, 2)
	assert.Equal(t, 1, s.Regions[0].Misses)
	assert.Equal(t, model.CategoryScreen, s.Regions[1].Category)
}

func TestUpdate_SmoothsAndClamps(t *testing.T) {
	tr := New(DefaultConfig())
	s := run(tr, State{}, 1, det(model.CategoryCard, image.Rect(600, 400, 700, 500), 0.9))
	r := s.Regions[0]
	assert.Equal(t, image.Rect(600, 400, 640, 480), r.Bounds())

	s = run(tr, s, 2, det(model.CategoryCard, image.Rect(610, 410, 640, 480), 0.9))
	r = s.Regions[0]
	assert.InDelta(t, 606, r.Rect.MinX, 1e-9)
	assert.InDelta(t, 406, r.Rect.MinY, 1e-9)
	assert.True(t, r.Bounds().In(bounds))
}

func TestUpdate_DoesNotModifyInput(t *testing.T) {
	tr := New(DefaultConfig())
	s := run(tr, State{}, 1, face(100, 100))
	before := *s.Regions[0]

	_ = run(tr, s, 2, face(110, 100))
	_ = run(tr, s, 2)
	assert.Equal(t, before, *s.Regions[0])
	assert.Equal(t, uint64(1), s.NextID)
}

func TestVisible(t *testing.T) {
	tr := New(DefaultConfig())
	s := run(tr, State{}, 1, face(0, 0))
	assert.Len(t, Visible(s), 1, "new region is shown in the frame it was seen")

	s = run(tr, s, 2)
	assert.Empty(t, Visible(s), "unconfirmed region is hidden once missed")
}

// A face moving slowly across five frames keeps one identity and is shown in
// every frame.
func TestUpdate_FaceAcrossFiveFrames(t *testing.T) {
	tr := New(DefaultConfig())
	var s State
	ids := map[uint64]bool{}
	for f := uint64(1); f <= 5; f++ {
		s = run(tr, s, f, face(100+int(f)*4, 120+int(f)*2))
		vis := Visible(s)
		require.Len(t, vis, 1)
		ids[vis[0].ID] = true
	}
	assert.Len(t, ids, 1)
	assert.Equal(t, model.StateConfirmed, s.Regions[0].State)
	assert.Equal(t, 5, s.Regions[0].Matches)
}
