// Package practice runs a paper from a local YAML file against an in-memory
// backend that grades on completion.
package practice

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/transport"
	"github.com/stemsi/exstem-client/internal/validator"
	"gopkg.in/yaml.v3"
)

type fileQuestion struct {
	model.Question `yaml:",inline"`
	Answer         model.Choice `yaml:"answer"`
}

type fileFormat struct {
	ExamID          string         `yaml:"exam_id"`
	Title           string         `yaml:"title"`
	DurationMinutes int            `yaml:"duration_minutes"`
	Questions       []fileQuestion `yaml:"questions"`
}

// Result is the outcome of a completed practice run.
type Result struct {
	Score       int
	MaxScore    int
	Correct     int
	Answered    int
	CompletedAt time.Time
}

// Backend is an in-memory transport.Client over one practice paper.
type Backend struct {
	paper   *model.Paper
	key     map[string]model.Choice
	latency time.Duration
	log     zerolog.Logger

	mu        sync.Mutex
	answers   map[string]model.Choice
	result    *Result
	failSaves int
}

// Option configures a Backend.
type Option func(*Backend)

// WithLatency delays every call, to feel like a real network.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// Load reads and validates a practice paper file.
func Load(path string, log zerolog.Logger, opts ...Option) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read practice file: %w", err)
	}
	return Parse(data, log, opts...)
}

// Parse builds a backend from YAML. Every run gets a fresh session id.
func Parse(data []byte, log zerolog.Logger, opts ...Option) (*Backend, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse practice file: %w", err)
	}

	paper := &model.Paper{
		SessionID:       "practice-" + uuid.NewString(),
		ExamID:          f.ExamID,
		Title:           f.Title,
		DurationMinutes: f.DurationMinutes,
	}
	key := make(map[string]model.Choice, len(f.Questions))
	for i, q := range f.Questions {
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		paper.Questions = append(paper.Questions, q.Question)
		if q.Answer != "" {
			c, err := model.ParseChoice(string(q.Answer))
			if err != nil {
				return nil, fmt.Errorf("question %s: %w", q.ID, err)
			}
			key[q.ID] = c
		}
	}
	if err := validator.ValidatePaper(paper); err != nil {
		return nil, err
	}

	b := &Backend{
		paper:   paper,
		key:     key,
		log:     log.With().Str("component", "practice").Str("session_id", paper.SessionID).Logger(),
		answers: make(map[string]model.Choice),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// LoadPaper returns a copy of the practice paper.
func (b *Backend) LoadPaper(ctx context.Context) (*model.Paper, error) {
	p := *b.paper
	p.Questions = append([]model.Question(nil), b.paper.Questions...)
	return &p, nil
}

// LoadState returns nil: practice runs always start fresh.
func (b *Backend) LoadState(ctx context.Context) (*model.ResumeState, error) {
	return nil, nil
}

// FailNextSaves makes the next n SubmitAnswer calls fail.
func (b *Backend) FailNextSaves(n int) {
	b.mu.Lock()
	b.failSaves = n
	b.mu.Unlock()
}

// SubmitAnswer stores the answer in memory.
func (b *Backend) SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if sessionID != b.paper.SessionID {
		return fmt.Errorf("%w: %s", transport.ErrSessionMismatch, sessionID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result != nil {
		return fmt.Errorf("%w: session already completed", transport.ErrRejected)
	}
	if b.failSaves > 0 {
		b.failSaves--
		return fmt.Errorf("%w: simulated save failure", transport.ErrRejected)
	}
	b.answers[questionID] = choice
	return nil
}

// CompleteExam grades the stored answers. Completing twice is a no-op.
func (b *Backend) CompleteExam(ctx context.Context, sessionID string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if sessionID != b.paper.SessionID {
		return fmt.Errorf("%w: %s", transport.ErrSessionMismatch, sessionID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result != nil {
		return nil
	}

	r := &Result{Answered: len(b.answers), CompletedAt: time.Now()}
	for _, q := range b.paper.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		r.MaxScore += points
		if want, ok := b.key[q.ID]; ok && b.answers[q.ID] == want {
			r.Correct++
			r.Score += points
		}
	}
	b.result = r
	b.log.Info().
		Int("score", r.Score).
		Int("max_score", r.MaxScore).
		Int("answered", r.Answered).
		Msg("Practice run graded")
	return nil
}

// Result returns the grading outcome once the run is complete.
func (b *Backend) Result() (Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result == nil {
		return Result{}, false
	}
	return *b.result, true
}

// Answers returns a copy of the stored answers.
func (b *Backend) Answers() map[string]model.Choice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]model.Choice, len(b.answers))
	for k, v := range b.answers {
		out[k] = v
	}
	return out
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }

func (b *Backend) wait(ctx context.Context) error {
	if b.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
