package repository

import (
	"context"
	"errors"

	"privacyblur/internal/model"
)

// ProfileStore provides sensitivity profiles and keyword lists. Returned
// values are copies; callers may modify them freely.
type ProfileStore interface {
	Profile(name string) (model.Profile, error)
	KeywordList(name string) ([]string, error)
	ProfileNames() ([]string, error)
}

// ProfileWriter is implemented by stores that can be seeded.
type ProfileWriter interface {
	SaveProfile(p model.Profile) error
	SaveKeywordList(name string, keywords []string) error
}

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists session statistics.
type SessionRepository interface {
	// Flush writes a cumulative snapshot, replacing any earlier one of the same session.
	Flush(ctx context.Context, stats model.SessionStats) error

	GetByID(ctx context.Context, id string) (model.SessionStats, error)
	List(ctx context.Context, stream string, limit int) ([]model.SessionStats, error)
}
