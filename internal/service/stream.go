package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"privacyblur/internal/model"
	"privacyblur/internal/repository"
	"privacyblur/internal/service/classifier"
	"privacyblur/internal/service/stats"
	"privacyblur/internal/service/text"
	"privacyblur/internal/service/tracker"
)

// Rendered is the result of one pipeline pass.
type Rendered struct {
	Frame     *model.Frame
	Image     *image.RGBA
	Decisions []model.BlurDecision
}

// Stream processes the frames of one camera, one at a time and in capture
// order. The tracker state is owned by the stream goroutine.
type Stream struct {
	name    string
	deps    *Dependencies
	opts    Options
	queue   chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	stopped sync.Once

	lane    *text.Lane
	stats   *stats.Aggregator
	state   tracker.State
	index   uint64
	profile *model.Profile // last profile that loaded

	dropped atomic.Int64
}

func newStream(parent context.Context, name string, deps *Dependencies, opts Options) (*Stream, error) {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		name:   name,
		deps:   deps,
		opts:   opts,
		queue:  make(chan []byte, max(opts.Queue, 1)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		stats:  stats.NewAggregator(opts.Stats, name, deps.Sessions, deps.Logger),
	}

	if deps.OCR != nil {
		lane, err := text.NewLane(ctx, opts.Text, deps.OCR, deps.Matcher, deps.Logger)
		if err != nil {
			// the stream still blurs by category without text evidence
			deps.Logger.Warning("Text analysis disabled for %s: %v", name, err)
		} else {
			s.lane = lane
		}
	}
	return s, nil
}

// start launches the stream goroutine and its stats flusher.
func (s *Stream) start() {
	s.started.Store(true)
	go s.stats.Run(s.ctx)
	go s.run()
}

// enqueue hands an encoded frame to the stream. A full queue drops the frame.
func (s *Stream) enqueue(data []byte) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.queue <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Stream) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.queue:
			s.handle(data)
		}
	}
}

// handle decodes, renders and publishes one encoded frame.
func (s *Stream) handle(data []byte) {
	s.index++
	img, err := decodeFrame(data)
	if err != nil {
		s.deps.Logger.Warning("Skipping frame %d of %s: %v", s.index, s.name, err)
		s.stats.Record(model.FrameOutcome{Stream: s.name, Index: s.index, Timestamp: time.Now(), Skipped: true})
		return
	}

	frame := &model.Frame{Stream: s.name, Index: s.index, Timestamp: time.Now(), Image: img}
	out, err := s.Process(s.ctx, frame)
	if err != nil {
		if !errors.Is(err, model.ErrStreamDeactivated) {
			s.deps.Logger.Error("Failed to process frame %d of %s: %v", s.index, s.name, err)
		}
		return
	}

	s.publish(out)
}

// publish encodes a rendered frame and hands it to the viewers. Frames
// finished after the stream was deactivated are dropped.
func (s *Stream) publish(out Rendered) {
	if s.deps.Output == nil || s.ctx.Err() != nil {
		return
	}
	payload, err := encodeMessage(out, s.opts.JPEGQuality)
	if err != nil {
		s.deps.Logger.Error("Failed to encode frame %d of %s: %v", out.Frame.Index, s.name, err)
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	s.deps.Output.Publish(s.name, payload)
}

// Process runs one frame through detection, tracking, text analysis,
// classification and blurring. Nothing is applied once ctx is cancelled.
func (s *Stream) Process(ctx context.Context, frame *model.Frame) (Rendered, error) {
	if ctx.Err() != nil {
		return Rendered{}, fmt.Errorf("frame %d of %s: %w", frame.Index, s.name, model.ErrStreamDeactivated)
	}

	profile := s.activeProfile()
	keywords := s.keywords(profile)
	textOn := s.lane != nil && (len(keywords) > 0 || s.opts.TextPatterns)

	enabled := profile.Enabled()
	if textOn {
		enabled = withTextBearing(enabled)
	}
	minConfidence := make(map[model.Category]float64, len(enabled))
	for _, cat := range enabled {
		minConfidence[cat] = profile.Rule(cat).MinConfidence
	}

	res, err := s.deps.Coordinator.Detect(ctx, frame, enabled, minConfidence)
	if err != nil {
		if errors.Is(err, model.ErrCorruptFrame) {
			s.stats.Record(model.FrameOutcome{Stream: s.name, Index: frame.Index, Timestamp: frame.Timestamp, Skipped: true})
		}
		return Rendered{}, err
	}

	state, expired := s.deps.Tracker.Update(s.state, frame.Index, res.Regions, frame.Bounds())
	var report tracker.TextReport
	if s.lane != nil {
		report.Abandoned += tracker.AbandonExpired(s.lane, expired)
		if textOn {
			r := s.deps.Tracker.ConsultText(&state, frame, s.lane, keywords)
			r.Abandoned += report.Abandoned
			report = r
		}
	}

	if ctx.Err() != nil {
		return Rendered{}, fmt.Errorf("frame %d of %s: %w", frame.Index, s.name, model.ErrStreamDeactivated)
	}
	s.state = state

	decisions := classifier.ClassifyAll(tracker.Visible(state), profile)
	rendered := s.deps.Applier.Apply(frame.Image, decisions)
	if ctx.Err() != nil {
		return Rendered{}, fmt.Errorf("frame %d of %s: %w", frame.Index, s.name, model.ErrStreamDeactivated)
	}

	textMatches := 0
	for _, d := range decisions {
		if d.Forced {
			textMatches++
		}
	}
	s.stats.Record(model.FrameOutcome{
		Stream:         s.name,
		Index:          frame.Index,
		Timestamp:      frame.Timestamp,
		Detected:       res.Counts,
		Decisions:      decisions,
		TextMatches:    textMatches,
		DetectorErrors: len(res.Failed),
		OCRFailures:    report.Failures,
		OCRTimeouts:    report.Timeouts,
		OCRDropped:     report.Dropped,
		OCRAbandoned:   report.Abandoned,
	})

	return Rendered{Frame: frame, Image: rendered, Decisions: decisions}, nil
}

// activeProfile loads the configured profile for this frame. When the store
// fails, the last loaded profile is kept, and the stock default before that.
func (s *Stream) activeProfile() *model.Profile {
	p, err := s.deps.Profiles.Profile(s.opts.Profile)
	if err == nil {
		s.profile = &p
		return s.profile
	}
	if s.profile == nil {
		s.deps.Logger.Warning("Profile %q unavailable for %s, using stock default: %v", s.opts.Profile, s.name, err)
		def := repository.DefaultProfiles()[0]
		s.profile = &def
	}
	return s.profile
}

func (s *Stream) keywords(profile *model.Profile) []string {
	if profile.KeywordList == "" {
		return nil
	}
	keywords, err := s.deps.Profiles.KeywordList(profile.KeywordList)
	if err != nil {
		s.deps.Logger.Warning("Keyword list %q unavailable for %s: %v", profile.KeywordList, s.name, err)
		return nil
	}
	return keywords
}

// stop deactivates the stream: in-flight work is abandoned, the tracker
// state is dropped and the session is closed with a final flush.
func (s *Stream) stop(ctx context.Context) error {
	var err error
	s.stopped.Do(func() {
		s.cancel()
		// run returns once the current frame sees the cancellation; the
		// tracker state is only touched after that
		if s.started.Load() {
			<-s.done
		}
		if s.lane != nil {
			s.lane.Stop()
		}
		s.state = tracker.State{}
		err = s.stats.Close(ctx)
	})
	return err
}

// Snapshot returns the live statistics of the stream session.
func (s *Stream) Snapshot() model.SessionStats {
	return s.stats.Snapshot()
}

// Dropped reports frames discarded because the stream was behind.
func (s *Stream) Dropped() int64 {
	return s.dropped.Load()
}

func withTextBearing(enabled []model.Category) []model.Category {
	set := make(map[model.Category]bool, len(model.Categories))
	for _, c := range enabled {
		set[c] = true
	}
	out := make([]model.Category, 0, len(model.Categories))
	for _, c := range model.Categories {
		if set[c] || c.TextBearing() {
			out = append(out, c)
		}
	}
	return out
}

func decodeFrame(data []byte) (*image.RGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCorruptFrame, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", model.ErrCorruptFrame)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
