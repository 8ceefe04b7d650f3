package examsession

import "github.com/stemsi/exstem-client/internal/model"

// Select records choice for questionID. Re-selecting the recorded choice is
// accepted but does not re-arm autosave.
func (s *Session) Select(questionID string, choice model.Choice) error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		changed, err := s.store.Select(questionID, choice)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		s.record(questionID, choice)
		s.autosave.Arm(questionID)
		return nil
	})
}

// SelectCurrent records choice for the displayed question.
func (s *Session) SelectCurrent(choice model.Choice) error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		q, _ := s.store.CurrentQuestion()
		changed, err := s.store.Select(q.ID, choice)
		if err != nil {
			return err
		}
		if changed {
			s.record(q.ID, choice)
			s.autosave.Arm(q.ID)
		}
		return nil
	})
}

func (s *Session) record(questionID string, choice model.Choice) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordSelection(s.ctx, s.paper.SessionID, questionID, choice); err != nil {
		s.log.Warn().Err(err).Str("question_id", questionID).Msg("Journal write failed")
	}
}

func (s *Session) onAutosave(f autosaveFire) {
	if !s.autosave.Accept(f) {
		return
	}
	s.flush(f.questionID, ReasonAutosave)
}

// flush issues a write for questionID when its answer is not saved yet.
// The write is started before flush returns; its outcome arrives on the loop later.
func (s *Session) flush(questionID string, reason FlushReason) bool {
	if !s.store.NeedsFlush(questionID) {
		return false
	}
	choice, _ := s.store.Answer(questionID)
	s.store.MarkInflight(questionID, choice)
	s.emit(Event{Kind: EventFlushIssued, QuestionID: questionID, Choice: choice, Reason: reason})

	sessionID := s.paper.SessionID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.backend.SubmitAnswer(s.ctx, sessionID, questionID, choice)
		s.post(func() { s.onSaved(questionID, choice, reason, err) })
	}()
	return true
}

func (s *Session) onSaved(questionID string, choice model.Choice, reason FlushReason, err error) {
	s.store.Acknowledge(questionID, choice, err == nil)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("question_id", questionID).
			Str("reason", string(reason)).
			Msg("Answer save failed")
		s.emit(Event{Kind: EventAnswerSaveFailed, QuestionID: questionID, Choice: choice, Reason: reason, Err: err})
		return
	}

	if s.recorder != nil {
		if err := s.recorder.RecordPersisted(s.ctx, s.paper.SessionID, questionID, choice); err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("Journal update failed")
		}
	}
	s.log.Debug().
		Str("question_id", questionID).
		Str("reason", string(reason)).
		Msg("Answer saved")
	s.emit(Event{Kind: EventAnswerSaved, QuestionID: questionID, Choice: choice, Reason: reason})
}
