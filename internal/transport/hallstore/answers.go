package hallstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/transport"
)

type answerPayload struct {
	StudentID int    `json:"student_id"`
	ExamID    string `json:"exam_id"`
	QID       string `json:"q_id"`
	Answer    string `json:"answer"`
}

type scorePayload struct {
	StudentID int     `json:"student_id"`
	ExamID    string  `json:"exam_id"`
	Score     float64 `json:"score"`
}

// monitorEvent is forwarded verbatim to proctors watching the exam.
type monitorEvent struct {
	Type      string                 `json:"type"`
	StudentID int                    `json:"student_id"`
	ExamID    string                 `json:"exam_id"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// SubmitAnswer writes the answer to the answers hash and queues it for
// persistence in one transaction.
func (s *Store) SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	if err := s.checkSession(sessionID); err != nil {
		return err
	}
	// Question ids become part of a Redis key.
	if _, err := uuid.Parse(questionID); err != nil {
		return fmt.Errorf("%w: invalid q_id %q", transport.ErrRejected, questionID)
	}

	payload, err := json.Marshal(answerPayload{
		StudentID: s.studentID,
		ExamID:    s.examID.String(),
		QID:       questionID,
		Answer:    string(choice),
	})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.answersKey(), questionID, string(choice))
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("autosave %s: %w", questionID, err)
	}

	s.publish(ctx, "answer", map[string]interface{}{"q_id": questionID})
	return nil
}

// CompleteExam grades the saved answers against the cached answer key and
// queues the score; the scoring worker closes the session in PostgreSQL.
func (s *Store) CompleteExam(ctx context.Context, sessionID string) error {
	if err := s.checkSession(sessionID); err != nil {
		return err
	}

	answerKey, err := s.answerKey(ctx)
	if err != nil {
		return fmt.Errorf("grading failed: %w", err)
	}
	answers, err := s.rdb.HGetAll(ctx, s.answersKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to get answers: %w", err)
	}

	score, correct := grade(answerKey, answers)
	payload, err := json.Marshal(scorePayload{
		StudentID: s.studentID,
		ExamID:    s.examID.String(),
		Score:     score,
	})
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue score: %w", err)
	}

	s.log.Info().
		Float64("score", score).
		Int("correct", correct).
		Int("total", len(answerKey)).
		Msg("Exam submitted and graded")
	s.publish(ctx, "submit", map[string]interface{}{"score": score})
	return nil
}

func (s *Store) answerKey(ctx context.Context) (map[string]string, error) {
	key, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(s.examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(key) > 0 {
		return key, nil
	}

	s.log.Warn().Msg("Answer key not cached, reading from database")
	rows, err := s.pool.Query(ctx,
		`SELECT id, correct_option FROM questions WHERE exam_id = $1`, s.examID)
	if err != nil {
		return nil, fmt.Errorf("list answer key: %w", err)
	}
	defer rows.Close()

	key = make(map[string]string)
	for rows.Next() {
		var id uuid.UUID
		var correct string
		if err := rows.Scan(&id, &correct); err != nil {
			return nil, fmt.Errorf("scan answer key: %w", err)
		}
		key[id.String()] = correct
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("answer key not found")
	}
	return key, nil
}

// grade returns the percentage of key entries answered correctly.
func grade(answerKey, answers map[string]string) (score float64, correct int) {
	for qID, correctAns := range answerKey {
		if studentAns, ok := answers[qID]; ok && studentAns == correctAns {
			correct++
		}
	}
	if len(answerKey) > 0 {
		score = float64(correct) / float64(len(answerKey)) * 100
	}
	return score, correct
}

// publish notifies the exam monitor. Failures only cost the proctor a live update.
func (s *Store) publish(ctx context.Context, kind string, data map[string]interface{}) {
	msg, err := json.Marshal(monitorEvent{
		Type:      kind,
		StudentID: s.studentID,
		ExamID:    s.examID.String(),
		Timestamp: s.clock.Now().Unix(),
		Data:      data,
	})
	if err != nil {
		return
	}
	channel := config.CacheKey.ExamMonitorChannel(s.examID.String())
	if err := s.rdb.Publish(ctx, channel, msg).Err(); err != nil {
		s.log.Debug().Err(err).Str("event", kind).Msg("Monitor publish failed")
	}
}
