package examsession

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
)

// Backend is the persistence collaborator the session drives. Both calls may
// take arbitrarily long and may fail; the session never blocks on them.
type Backend interface {
	// SubmitAnswer upserts one answer. It must be idempotent.
	SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error
	// CompleteExam closes the session server-side.
	CompleteExam(ctx context.Context, sessionID string) error
}

// Recorder is told about every answer change and every acknowledged save.
// It runs on the session loop and should be fast (a local journal).
type Recorder interface {
	RecordSelection(ctx context.Context, sessionID, questionID string, choice model.Choice) error
	RecordPersisted(ctx context.Context, sessionID, questionID string, choice model.Choice) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithAutosaveDelay overrides DefaultAutosaveDelay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.autosaveDelay = d
		}
	}
}

// WithResume starts the session from state recovered after a reload.
func WithResume(r *model.ResumeState) Option {
	return func(s *Session) { s.resume = r }
}

// WithRecorder attaches a local journal.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}
