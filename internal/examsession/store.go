package examsession

import (
	"sort"

	"github.com/stemsi/exstem-client/internal/model"
)

// Store holds the question list, the answer map, the cursor and the
// per-question persistence markers. It is owned by the session loop and is
// not safe for concurrent use.
type Store struct {
	questions []model.Question
	index     map[string]int
	answers   map[string]model.Choice
	cursor    int

	// persisted is the last choice the backend acknowledged per question.
	persisted map[string]model.Choice
	// inflight is the choice currently being sent per question.
	inflight map[string]model.Choice
	// touched counts selections per question, including repeats.
	touched map[string]int
}

// NewStore builds a store over an ordered question list.
func NewStore(questions []model.Question) *Store {
	qs := make([]model.Question, len(questions))
	copy(qs, questions)

	index := make(map[string]int, len(qs))
	for i, q := range qs {
		index[q.ID] = i
	}

	return &Store{
		questions: qs,
		index:     index,
		answers:   make(map[string]model.Choice),
		persisted: make(map[string]model.Choice),
		inflight:  make(map[string]model.Choice),
		touched:   make(map[string]int),
	}
}

// Len returns the number of questions.
func (s *Store) Len() int { return len(s.questions) }

// Empty reports whether the session has no questions.
func (s *Store) Empty() bool { return len(s.questions) == 0 }

// IDs returns the question ids in session order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.questions))
	for i, q := range s.questions {
		ids[i] = q.ID
	}
	return ids
}

// Cursor returns the index of the displayed question.
func (s *Store) Cursor() int { return s.cursor }

// CurrentQuestion returns the question at the cursor. ok is false for an
// empty session.
func (s *Store) CurrentQuestion() (q model.Question, ok bool) {
	if s.Empty() {
		return model.Question{}, false
	}
	return s.questions[s.cursor], true
}

// Has reports whether questionID belongs to the session.
func (s *Store) Has(questionID string) bool {
	_, ok := s.index[questionID]
	return ok
}

// Select records choice for questionID and reports whether the answer map
// changed. Re-selecting the current choice only bumps the touch counter.
func (s *Store) Select(questionID string, choice model.Choice) (changed bool, err error) {
	if !choice.Valid() {
		return false, ErrInvalidChoice
	}
	if !s.Has(questionID) {
		return false, ErrUnknownQuestion
	}
	s.touched[questionID]++
	if prev, ok := s.answers[questionID]; ok && prev == choice {
		return false, nil
	}
	s.answers[questionID] = choice
	return true, nil
}

// Answer returns the recorded choice for questionID.
func (s *Store) Answer(questionID string) (model.Choice, bool) {
	c, ok := s.answers[questionID]
	return c, ok
}

// Touches returns how many times questionID was selected.
func (s *Store) Touches(questionID string) int { return s.touched[questionID] }

// AnsweredCount is the number of distinct questions with a choice.
func (s *Store) AnsweredCount() int { return len(s.answers) }

// ProgressPercent is AnsweredCount over the question count, times 100.
// It is 0 for an empty session.
func (s *Store) ProgressPercent() float64 {
	if s.Empty() {
		return 0
	}
	return float64(s.AnsweredCount()) / float64(len(s.questions)) * 100
}

// MoveTo sets the cursor. It reports false and leaves the cursor alone when
// index is outside [0, Len).
func (s *Store) MoveTo(index int) bool {
	if index < 0 || index >= len(s.questions) {
		return false
	}
	s.cursor = index
	return true
}

// NeedsFlush reports whether the in-memory answer for questionID differs from
// what the backend acknowledged and is not already on its way.
func (s *Store) NeedsFlush(questionID string) bool {
	c, ok := s.answers[questionID]
	if !ok {
		return false
	}
	if s.persisted[questionID] == c {
		return false
	}
	return s.inflight[questionID] != c
}

// Unsaved returns the question ids whose answer was not acknowledged yet, in
// paper order.
func (s *Store) Unsaved() []string {
	var ids []string
	for qid, c := range s.answers {
		if s.persisted[qid] != c {
			ids = append(ids, qid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.index[ids[i]] < s.index[ids[j]] })
	return ids
}

// MarkInflight records that choice is being sent for questionID.
func (s *Store) MarkInflight(questionID string, choice model.Choice) {
	s.inflight[questionID] = choice
}

// Acknowledge records the outcome of a send of choice for questionID.
func (s *Store) Acknowledge(questionID string, choice model.Choice, ok bool) {
	if s.inflight[questionID] == choice {
		delete(s.inflight, questionID)
	}
	if ok {
		s.persisted[questionID] = choice
	}
}

// Restore seeds the answer map. Persisted answers are marked as acknowledged;
// unsaved ones override them and stay dirty.
func (s *Store) Restore(persisted, unsaved map[string]model.Choice) {
	for qid, c := range persisted {
		if s.Has(qid) && c.Valid() {
			s.answers[qid] = c
			s.persisted[qid] = c
		}
	}
	for qid, c := range unsaved {
		if s.Has(qid) && c.Valid() {
			s.answers[qid] = c
		}
	}
}

// Answers returns a copy of the answer map.
func (s *Store) Answers() map[string]model.Choice {
	out := make(map[string]model.Choice, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}
