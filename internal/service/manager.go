package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/disintegration/imaging"

	"privacyblur/internal/config"
	"privacyblur/internal/dto"
	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/repository"
	"privacyblur/internal/service/blur"
	"privacyblur/internal/service/detection"
	"privacyblur/internal/service/stats"
	"privacyblur/internal/service/text"
	"privacyblur/internal/service/tracker"
)

// ErrUnknownStream is returned for stream names the manager has never seen.
var ErrUnknownStream = errors.New("unknown stream")

// Publisher receives every rendered frame.
type Publisher interface {
	Publish(camera string, payload []byte)
}

// Dependencies are the collaborators shared by every stream.
type Dependencies struct {
	Coordinator *detection.Coordinator
	Tracker     *tracker.Tracker
	Applier     *blur.Applier
	Matcher     *text.Matcher
	// OCR creates one engine per text worker; nil disables text analysis.
	OCR      text.EngineFactory
	Profiles repository.ProfileStore
	// Sessions persists session statistics; nil keeps them in memory only.
	Sessions stats.Persister
	Output   Publisher
	Logger   *logger.Logger
}

// Options are the per-stream settings.
type Options struct {
	Profile      string
	Queue        int
	JPEGQuality  int
	TextPatterns bool
	Text         text.LaneConfig
	Stats        stats.Config
}

// OptionsFromConfig derives stream options from the server configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Profile:      cfg.ActiveProfile,
		Queue:        cfg.StreamQueue,
		JPEGQuality:  cfg.JPEGQuality,
		TextPatterns: cfg.Text.Patterns,
		Text: text.LaneConfig{
			Backlog: cfg.Text.Backlog,
			Workers: cfg.Text.Workers,
			Timeout: cfg.Text.Timeout,
		},
		Stats: stats.Config{
			FlushInterval: cfg.Stats.FlushInterval,
			FlushFrames:   cfg.Stats.FlushFrames,
			FlushTimeout:  cfg.Stats.FlushTimeout,
		},
	}
}

// StreamStatus describes one known stream.
type StreamStatus struct {
	Name    string `json:"name"`
	Active  bool   `json:"active"`
	Dropped int64  `json:"dropped"`
}

// Manager routes incoming camera frames to one Stream per camera. Streams
// start on their first frame; a deactivated stream ignores frames until it
// is activated again, which opens a new session.
type Manager struct {
	deps   *Dependencies
	opts   Options
	logger *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	streams     map[string]*Stream
	deactivated map[string]bool
	closed      bool
}

func NewManager(deps Dependencies, opts Options) *Manager {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		deps:        &deps,
		opts:        opts,
		logger:      deps.Logger,
		ctx:         ctx,
		cancel:      cancel,
		streams:     make(map[string]*Stream),
		deactivated: make(map[string]bool),
	}
	m.logger.Info("Manager started with profile %q", opts.Profile)
	return m
}

// HandleCameraImage queues one JPEG frame of camera for processing.
func (m *Manager) HandleCameraImage(image []byte, camera string) {
	s, err := m.stream(camera)
	if err != nil {
		return
	}
	if !s.enqueue(image) {
		m.logger.Warning("Stream %s is behind, frame dropped", camera)
	}
}

func (m *Manager) stream(camera string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, deactivatedError(camera)
	}
	if m.deactivated[camera] {
		return nil, deactivatedError(camera)
	}
	if s, ok := m.streams[camera]; ok {
		return s, nil
	}
	s, err := newStream(m.ctx, camera, m.deps, m.opts)
	if err != nil {
		m.logger.Error("Failed to start stream %s: %v", camera, err)
		return nil, err
	}
	m.streams[camera] = s
	s.start()
	m.logger.Info("Stream %s started, session %s", camera, s.Snapshot().SessionID)
	return s, nil
}

func deactivatedError(camera string) error {
	return fmt.Errorf("stream %s: %w", camera, model.ErrStreamDeactivated)
}

// Deactivate stops processing of camera. In-flight detector and OCR calls
// are abandoned, the tracker state is dropped and the session is closed.
func (m *Manager) Deactivate(ctx context.Context, camera string) error {
	m.mu.Lock()
	s, ok := m.streams[camera]
	delete(m.streams, camera)
	known := ok || m.deactivated[camera]
	m.deactivated[camera] = true
	m.mu.Unlock()

	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownStream, camera)
	}
	if s == nil {
		return nil
	}
	snapshot := s.Snapshot()
	if err := s.stop(ctx); err != nil {
		m.logger.Warning("Stream %s deactivated, final flush failed: %v", camera, err)
		return nil
	}
	m.logger.Info("Stream %s deactivated after %d frames (session %s)", camera, snapshot.FramesProcessed, snapshot.SessionID)
	return nil
}

// Activate lets frames of camera through again.
func (m *Manager) Activate(camera string) {
	m.mu.Lock()
	delete(m.deactivated, camera)
	m.mu.Unlock()
}

// Streams lists every known stream by name.
func (m *Manager) Streams() []StreamStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StreamStatus, 0, len(m.streams)+len(m.deactivated))
	for name, s := range m.streams {
		out = append(out, StreamStatus{Name: name, Active: true, Dropped: s.Dropped()})
	}
	for name := range m.deactivated {
		out = append(out, StreamStatus{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshots returns the live session statistics of every active stream.
func (m *Manager) Snapshots() []model.SessionStats {
	m.mu.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	out := make([]model.SessionStats, 0, len(streams))
	for _, s := range streams {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })
	return out
}

// Stop deactivates every stream and waits for their final flushes.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	streams := m.streams
	m.streams = make(map[string]*Stream)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, s := range streams {
		wg.Add(1)
		go func(name string, s *Stream) {
			defer wg.Done()
			if err := s.stop(ctx); err != nil {
				m.logger.Warning("Final flush of %s failed: %v", name, err)
			}
		}(name, s)
	}
	wg.Wait()
	m.cancel()
	m.logger.Info("All streams stopped")
}

// encodeMessage renders the viewer message of a processed frame.
func encodeMessage(out Rendered, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if quality <= 0 {
		quality = 80
	}
	if err := imaging.Encode(&buf, out.Image, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return json.Marshal(dto.NewFrameMessage(out.Frame, buf.Bytes(), out.Decisions))
}
