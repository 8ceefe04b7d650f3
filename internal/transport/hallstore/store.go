// Package hallstore runs an exam session directly against the exam hall's
// Redis and PostgreSQL, writing answers the way the exam stream handler does:
// the answers hash, the persist queue and the monitor channel.
package hallstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/transport"
)

// Store is a transport.Client for one student and one exam.
type Store struct {
	rdb       *redis.Client
	pool      *pgxpool.Pool
	clock     clockwork.Clock
	examID    uuid.UUID
	studentID int
	log       zerolog.Logger

	mu      sync.Mutex
	session *model.ExamSession
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the real clock used for remaining-time calculation.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New builds a store. Both connections are owned by the caller.
func New(rdb *redis.Client, pool *pgxpool.Pool, examID string, studentID int, log zerolog.Logger, opts ...Option) (*Store, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("invalid exam id %q: %w", examID, err)
	}
	if rdb == nil || pool == nil {
		return nil, errors.New("hallstore needs both redis and postgres")
	}

	s := &Store{
		rdb:       rdb,
		pool:      pool,
		clock:     clockwork.NewRealClock(),
		examID:    id,
		studentID: studentID,
		log: log.With().
			Str("component", "hall_store").
			Str("exam_id", examID).
			Int("student_id", studentID).
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Join returns the student's session for the exam, creating it when absent.
func (s *Store) Join(ctx context.Context) (*model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}

	sess, err := s.getSession(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		sess, err = s.createSession(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent join from another terminal.
			sess, err = s.getSession(ctx)
		}
		if err == nil {
			s.publish(ctx, "join", nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("join session: %w", err)
	}
	if sess.Status == model.SessionStatusCompleted {
		return nil, &response.APIError{
			Status:  http.StatusConflict,
			Code:    response.ErrSessionCompleted,
			Message: response.GetMessage(response.ErrSessionCompleted),
		}
	}

	startKey := config.CacheKey.StudentExamSessionStartKey(s.examID.String(), s.studentID)
	if err := s.rdb.SetNX(ctx, startKey, sess.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache session start")
	}

	s.session = sess
	s.log.Info().Str("session_id", sess.ID.String()).Msg("Joined exam")
	return sess, nil
}

// Close is a no-op; the connections belong to the caller.
func (s *Store) Close() error { return nil }

func (s *Store) checkSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return transport.ErrNotJoined
	}
	if s.session.ID.String() != sessionID {
		return fmt.Errorf("%w: %s", transport.ErrSessionMismatch, sessionID)
	}
	return nil
}

func (s *Store) answersKey() string {
	return config.CacheKey.StudentAnswersKey(s.examID.String(), s.studentID)
}

// getSession retrieves the session for this exam-student combination.
func (s *Store) getSession(ctx context.Context) (*model.ExamSession, error) {
	sess := &model.ExamSession{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, s.examID, s.studentID,
	).Scan(&sess.ID, &sess.ExamID, &sess.StudentID, &sess.StartedAt, &sess.FinishedAt, &sess.Status)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// createSession inserts a new exam session. pgx.ErrNoRows means another
// terminal won the race.
func (s *Store) createSession(ctx context.Context) (*model.ExamSession, error) {
	sess := &model.ExamSession{
		ExamID:    s.examID,
		StudentID: s.studentID,
		Status:    model.SessionStatusInProgress,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		s.examID, s.studentID, model.SessionStatusInProgress,
	).Scan(&sess.ID, &sess.StartedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
