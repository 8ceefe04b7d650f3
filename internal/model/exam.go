package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ExamPayload is the cached exam paper served by the exstem backend
// (no correct answers).
type ExamPayload struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is the backend's wire form of a question.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
	ScoreValue   int             `json:"score_value,omitempty"`
}

// SessionStatus enumerates backend exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// ExamSession is a student's attempt as returned by the join endpoint.
type ExamSession struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     SessionStatus `json:"status"`
}

// ExamSessionState is the backend's view of a session after a reload.
type ExamSessionState struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingTime    float64           `json:"remaining_time"`
}

// JoinExamRequest is the payload for joining an exam.
type JoinExamRequest struct {
	EntryToken string `json:"entry_token"`
}

type keyedOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// DecodeOptions accepts the option encodings the backend stores:
// {"A": "..."}, [{"key": "A", "text": "..."}] or ["...", "...", ...].
func DecodeOptions(raw json.RawMessage) (map[Choice]string, error) {
	out := make(map[Choice]string, len(Choices))

	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err == nil {
		for k, v := range byKey {
			c, err := ParseChoice(k)
			if err != nil {
				return nil, err
			}
			out[c] = v
		}
		return out, nil
	}

	var keyed []keyedOption
	if err := json.Unmarshal(raw, &keyed); err == nil && len(keyed) > 0 && keyed[0].Key != "" {
		for _, o := range keyed {
			c, err := ParseChoice(o.Key)
			if err != nil {
				return nil, err
			}
			out[c] = o.Text
		}
		return out, nil
	}

	var plain []string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if len(plain) > len(Choices) {
		return nil, fmt.Errorf("decode options: %d options, at most %d supported", len(plain), len(Choices))
	}
	for i, text := range plain {
		out[Choices[i]] = text
	}
	return out, nil
}

// ToPaper converts the backend payload into session bootstrap data.
// Questions are ordered by OrderNum, keeping payload order for ties.
func (p *ExamPayload) ToPaper(sessionID string) (*Paper, error) {
	questions := make([]Question, 0, len(p.Questions))
	for _, q := range p.Questions {
		opts, err := DecodeOptions(q.Options)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		questions = append(questions, Question{
			ID:           q.ID.String(),
			QuestionText: q.QuestionText,
			Options:      opts,
			Points:       q.ScoreValue,
			OrderNum:     q.OrderNum,
		})
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderNum < questions[j].OrderNum
	})

	return &Paper{
		SessionID:       sessionID,
		ExamID:          p.ExamID.String(),
		Title:           p.Title,
		DurationMinutes: p.Duration,
		Questions:       questions,
	}, nil
}

// ToResume converts the backend state into resume data. Answers the
// backend stores in an unknown format are skipped.
func (s *ExamSessionState) ToResume() *ResumeState {
	persisted := make(map[string]Choice, len(s.AutosavedAnswers))
	for qid, ans := range s.AutosavedAnswers {
		if c, err := ParseChoice(ans); err == nil {
			persisted[qid] = c
		}
	}
	return &ResumeState{
		Remaining: time.Duration(s.RemainingTime * float64(time.Second)),
		Persisted: persisted,
	}
}
