//go:build integration
// +build integration

package hallstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE IF NOT EXISTS exams (
  id UUID PRIMARY KEY,
  title TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS questions (
  id UUID PRIMARY KEY,
  exam_id UUID NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  options JSONB NOT NULL,
  correct_option TEXT NOT NULL,
  order_num INTEGER NOT NULL,
  score_value INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS exam_sessions (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  exam_id UUID NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  student_id INTEGER NOT NULL,
  started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  finished_at TIMESTAMPTZ,
  status TEXT NOT NULL,
  UNIQUE (exam_id, student_id)
);`

type fixture struct {
	rdb     *redis.Client
	pool    *pgxpool.Pool
	examID  uuid.UUID
	qids    []uuid.UUID
	student int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	redisURL, dbURL := os.Getenv("REDIS_URL"), os.Getenv("DATABASE_URL")
	if redisURL == "" || dbURL == "" {
		t.Skip("REDIS_URL and DATABASE_URL are required")
	}
	ctx := context.Background()

	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)

	f := &fixture{rdb: rdb, pool: pool, examID: uuid.New(), student: int(time.Now().UnixNano() % 1_000_000)}
	_, err = pool.Exec(ctx, `INSERT INTO exams (id, title, duration_minutes) VALUES ($1, 'Integration', 20)`, f.examID)
	require.NoError(t, err)
	for i, correct := range []string{"A", "C"} {
		id := uuid.New()
		f.qids = append(f.qids, id)
		_, err = pool.Exec(ctx,
			`INSERT INTO questions (id, exam_id, question_text, options, correct_option, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, f.examID, "question", `{"A":"a","B":"b","C":"c","D":"d"}`, correct, i+1)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM exams WHERE id = $1`, f.examID)
		_ = rdb.Del(context.Background(),
			config.CacheKey.StudentAnswersKey(f.examID.String(), f.student),
			config.CacheKey.StudentExamSessionStartKey(f.examID.String(), f.student),
		).Err()
	})
	return f
}

func TestHallStoreRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	fc := clockwork.NewFakeClockAt(time.Now())

	store, err := New(f.rdb, f.pool, f.examID.String(), f.student, zerolog.Nop(), WithClock(fc))
	require.NoError(t, err)

	paper, err := store.LoadPaper(ctx)
	require.NoError(t, err)
	require.Len(t, paper.Questions, 2)
	assert.Equal(t, 20*time.Minute, paper.Duration())

	sub := f.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(f.examID.String()))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SubmitAnswer(ctx, paper.SessionID, f.qids[0].String(), model.ChoiceA))
	require.NoError(t, store.SubmitAnswer(ctx, paper.SessionID, f.qids[1].String(), model.ChoiceB))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev monitorEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, "answer", ev.Type)

	state, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ChoiceA, state.Persisted[f.qids[0].String()])
	assert.InDelta(t, (20 * time.Minute).Seconds(), state.Remaining.Seconds(), 5)

	before, err := f.rdb.LLen(ctx, config.WorkerKey.PersistScoresQueue).Result()
	require.NoError(t, err)
	require.NoError(t, store.CompleteExam(ctx, paper.SessionID))
	after, err := f.rdb.LLen(ctx, config.WorkerKey.PersistScoresQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}
