package text

import (
	"context"
	"errors"
	"fmt"
	"image"

	"privacyblur/internal/model"
)

// Engine extracts text from a picture. Engines are not shared between
// lanes; each lane worker owns one.
//
// Analyze stops waiting when ctx expires but cannot interrupt a call that
// ignores ctx. That call keeps running, and the worker may issue its next
// Text while it does, so an engine must either honour ctx or serialize its
// calls. A serializing engine makes the next request wait for the stale one,
// which can push its latency past the lane timeout.
type Engine interface {
	Text(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// EngineFactory builds one engine per lane worker.
type EngineFactory func() (Engine, error)

// Analyzer runs an engine over a crop and matches the result.
type Analyzer struct {
	engine  Engine
	matcher *Matcher
}

func NewAnalyzer(engine Engine, matcher *Matcher) *Analyzer {
	return &Analyzer{engine: engine, matcher: matcher}
}

// Analyze extracts the text of crop and matches it against keywords.
// Deadline expiry yields ErrOCRTimeout and engine errors ErrOCRFailure;
// either way the returned sensitivity carries no evidence.
func (a *Analyzer) Analyze(ctx context.Context, crop image.Image, keywords []string) (model.TextSensitivity, error) {
	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("engine panicked: %v", r)}
			}
		}()
		text, err := a.engine.Text(ctx, crop)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return model.TextSensitivity{}, fmt.Errorf("%w: %v", model.ErrOCRTimeout, out.err)
			}
			return model.TextSensitivity{}, fmt.Errorf("%w: %v", model.ErrOCRFailure, out.err)
		}
		return a.matcher.Match(out.text, keywords), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.TextSensitivity{}, fmt.Errorf("%w: %v", model.ErrOCRTimeout, ctx.Err())
		}
		return model.TextSensitivity{}, ctx.Err()
	}
}
