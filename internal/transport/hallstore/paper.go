package hallstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

// LoadPaper joins the exam and reads the cached student payload, falling
// back to PostgreSQL when the cache is cold.
func (s *Store) LoadPaper(ctx context.Context) (*model.Paper, error) {
	sess, err := s.Join(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := s.cachedPayload(ctx)
	if errors.Is(err, redis.Nil) {
		s.log.Warn().Msg("Exam payload not cached, reading from database")
		payload, err = s.queryPayload(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	return payload.ToPaper(sess.ID.String())
}

func (s *Store) cachedPayload(ctx context.Context) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(s.examID.String())).Bytes()
	if err != nil {
		return nil, err
	}
	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

func (s *Store) queryPayload(ctx context.Context) (*model.ExamPayload, error) {
	payload := &model.ExamPayload{ExamID: s.examID}
	err := s.pool.QueryRow(ctx,
		`SELECT title, duration_minutes FROM exams WHERE id = $1`, s.examID,
	).Scan(&payload.Title, &payload.Duration)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question_text, options, order_num, score_value
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num`, s.examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q model.QuestionForStudent
		var options []byte
		if err := rows.Scan(&q.ID, &q.QuestionText, &options, &q.OrderNum, &q.ScoreValue); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Options = options
		payload.Questions = append(payload.Questions, q)
	}
	return payload, rows.Err()
}

// LoadState rebuilds the resume state from the answers hash and the session
// start time, healing the start key from PostgreSQL on a cache miss.
func (s *Store) LoadState(ctx context.Context) (*model.ResumeState, error) {
	sess, err := s.Join(ctx)
	if err != nil {
		return nil, err
	}

	answers, err := s.rdb.HGetAll(ctx, s.answersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("get question answers: %w", err)
	}

	durationMinutes, err := s.durationMinutes(ctx)
	if err != nil {
		return nil, err
	}

	startKey := config.CacheKey.StudentExamSessionStartKey(s.examID.String(), s.studentID)
	startTime := sess.StartedAt
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		_ = s.rdb.Set(ctx, startKey, startTime.Unix(), 0).Err()
	case err != nil:
		return nil, fmt.Errorf("redis error getting start time: %w", err)
	default:
		unix, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
		startTime = time.Unix(unix, 0)
	}

	state := &model.ExamSessionState{
		ExamID:           s.examID,
		StudentID:        s.studentID,
		AutosavedAnswers: answers,
		RemainingTime:    remainingAt(startTime, durationMinutes, s.clock.Now()).Seconds(),
	}
	return state.ToResume(), nil
}

func (s *Store) durationMinutes(ctx context.Context) (int, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(s.examID.String())).Result()
	if err == nil {
		n, convErr := strconv.Atoi(val)
		if convErr != nil {
			return 0, fmt.Errorf("invalid duration format in redis: %w", convErr)
		}
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("get exam duration: %w", err)
	}

	var minutes int
	err = s.pool.QueryRow(ctx, `SELECT duration_minutes FROM exams WHERE id = $1`, s.examID).Scan(&minutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("exam %s not found", s.examID)
	}
	if err != nil {
		return 0, fmt.Errorf("get exam duration: %w", err)
	}
	return minutes, nil
}

// remainingAt is the time left at now for a session started at start, never negative.
func remainingAt(start time.Time, durationMinutes int, now time.Time) time.Duration {
	if durationMinutes <= 0 {
		durationMinutes = model.DefaultDurationMinutes
	}
	remaining := start.Add(time.Duration(durationMinutes) * time.Minute).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
