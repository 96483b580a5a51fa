package service

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/model"
	"privacyblur/internal/repository"
)

func newTestManager(t *testing.T) (*Manager, *recordingPublisher, *recordingPersister) {
	t.Helper()
	store := newMemoryStore(repository.DefaultProfiles()...)
	face := fixedDetector(model.CategoryFace, func(int) image.Rectangle { return image.Rect(10, 10, 40, 40) })
	deps := testDeps(store, nil, face)
	pub := &recordingPublisher{}
	persister := &recordingPersister{}
	deps.Output = pub
	deps.Sessions = persister

	m := NewManager(deps, testOptions(repository.DefaultProfileName))
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m, pub, persister
}

func TestManager_PublishesRenderedFrames(t *testing.T) {
	m, pub, _ := newTestManager(t)
	frame := jpegFrame(t, patterned(80, 60))

	m.HandleCameraImage(frame, "door")
	require.Eventually(t, func() bool { return pub.count("door") == 1 }, 2*time.Second, 5*time.Millisecond)

	snaps := m.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "door", snaps[0].Stream)
	assert.Equal(t, int64(1), snaps[0].FramesProcessed)
}

func TestManager_DeactivateClosesSession(t *testing.T) {
	m, pub, persister := newTestManager(t)
	m.HandleCameraImage(jpegFrame(t, patterned(80, 60)), "door")
	require.Eventually(t, func() bool { return pub.count("door") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Deactivate(context.Background(), "door"))

	last, ok := persister.last()
	require.True(t, ok)
	assert.Equal(t, "door", last.Stream)
	assert.False(t, last.EndedAt.IsZero())
	assert.Equal(t, int64(1), last.FramesProcessed)

	m.HandleCameraImage(jpegFrame(t, patterned(80, 60)), "door")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, pub.count("door"))
	assert.Empty(t, m.Snapshots())
	assert.Equal(t, []StreamStatus{{Name: "door"}}, m.Streams())

	m.Activate("door")
	m.HandleCameraImage(jpegFrame(t, patterned(80, 60)), "door")
	require.Eventually(t, func() bool { return pub.count("door") == 2 }, 2*time.Second, 5*time.Millisecond)
	snaps := m.Snapshots()
	require.Len(t, snaps, 1)
	assert.NotEqual(t, last.SessionID, snaps[0].SessionID)
}

func TestManager_DeactivateUnknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Deactivate(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrUnknownStream))
}

func TestManager_CorruptFramesAreCounted(t *testing.T) {
	m, pub, _ := newTestManager(t)
	m.HandleCameraImage([]byte{0xFF, 0xD8, 0xFF, 0xD9}, "yard")

	require.Eventually(t, func() bool {
		snaps := m.Snapshots()
		return len(snaps) == 1 && snaps[0].FramesSkipped == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, pub.count("yard"))
}
