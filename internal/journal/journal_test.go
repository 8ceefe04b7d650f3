package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j.withClock(clockwork.NewFakeClockAt(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)))
}

func TestPendingTracksUnacknowledgedChoices(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.RecordSelection(ctx, "s1", "q1", model.ChoiceA))
	require.NoError(t, j.RecordSelection(ctx, "s1", "q2", model.ChoiceB))
	require.NoError(t, j.RecordPersisted(ctx, "s1", "q1", model.ChoiceA))

	pending, err := j.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Choice{"q2": model.ChoiceB}, pending)
}

func TestPendingAfterChangeOfAnsweredQuestion(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.RecordSelection(ctx, "s1", "q1", model.ChoiceA))
	require.NoError(t, j.RecordPersisted(ctx, "s1", "q1", model.ChoiceA))
	require.NoError(t, j.RecordSelection(ctx, "s1", "q1", model.ChoiceC))

	pending, err := j.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Choice{"q1": model.ChoiceC}, pending)

	require.NoError(t, j.RecordPersisted(ctx, "s1", "q1", model.ChoiceC))
	pending, err = j.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingIsScopedToSession(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.RecordSelection(ctx, "s1", "q1", model.ChoiceA))
	require.NoError(t, j.RecordSelection(ctx, "s2", "q1", model.ChoiceD))

	pending, err := j.Pending(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Choice{"q1": model.ChoiceD}, pending)

	require.NoError(t, j.Forget(ctx, "s2"))
	pending, err = j.Pending(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = j.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, j.RecordSelection(ctx, "s1", "q3", model.ChoiceB))
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()

	pending, err := j.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Choice{"q3": model.ChoiceB}, pending)
}

func TestReplay(t *testing.T) {
	t.Run("nil state ignores journal", func(t *testing.T) {
		assert.Nil(t, Replay(nil, map[string]model.Choice{"q1": model.ChoiceA}))
	})

	t.Run("drops entries the server already holds", func(t *testing.T) {
		state := &model.ResumeState{
			Remaining: 5 * time.Minute,
			Persisted: map[string]model.Choice{"q1": model.ChoiceA, "q2": model.ChoiceB},
		}
		got := Replay(state, map[string]model.Choice{
			"q1": model.ChoiceA,
			"q2": model.ChoiceC,
			"q3": model.ChoiceD,
		})
		assert.Equal(t, 5*time.Minute, got.Remaining)
		assert.Equal(t, map[string]model.Choice{"q2": model.ChoiceC, "q3": model.ChoiceD}, got.Unsaved)
	})

	t.Run("empty pending leaves state untouched", func(t *testing.T) {
		state := &model.ResumeState{Remaining: time.Minute}
		got := Replay(state, nil)
		assert.Same(t, state, got)
		assert.Nil(t, got.Unsaved)
	})
}
