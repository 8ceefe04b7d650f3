package model

import "time"

// DefaultDurationMinutes is used when a paper arrives without a duration.
const DefaultDurationMinutes = 15

// Paper is the bootstrap data for one session: the ordered questions, the
// time budget and the identifiers needed by the persistence collaborator.
// It is never mutated once a session has been created from it.
type Paper struct {
	SessionID       string     `json:"session_id" yaml:"session_id" validate:"required"`
	ExamID          string     `json:"exam_id" yaml:"exam_id"`
	Title           string     `json:"title" yaml:"title" validate:"max=255"`
	DurationMinutes int        `json:"duration_minutes" yaml:"duration_minutes" validate:"min=0,max=480"`
	Questions       []Question `json:"questions" yaml:"questions" validate:"unique=ID,dive"`
}

// Duration returns the time budget, falling back to DefaultDurationMinutes.
func (p *Paper) Duration() time.Duration {
	minutes := p.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// ResumeState is what the backend (and the local journal) know about a
// session that was started earlier.
type ResumeState struct {
	// Remaining is the server-computed time left.
	Remaining time.Duration
	// Persisted holds answers the server already has.
	Persisted map[string]Choice
	// Unsaved holds answers recorded locally but never acknowledged.
	Unsaved map[string]Choice
}
