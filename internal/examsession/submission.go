package examsession

import "github.com/stemsi/exstem-client/internal/model"

// RequestSubmit asks for confirmation (Active → ConfirmPending).
func (s *Session) RequestSubmit() error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		s.lastErr = nil
		s.setState(model.StateConfirmPending)
		return nil
	})
}

// CancelSubmit returns to Active (ConfirmPending → Active).
func (s *Session) CancelSubmit() error {
	return s.do(func() error {
		if s.store.Empty() {
			return ErrEmptySession
		}
		if s.state != model.StateConfirmPending {
			return ErrNotActive
		}
		s.lastErr = nil
		s.setState(model.StateActive)
		return nil
	})
}

// ConfirmSubmit starts finalization (ConfirmPending → Submitting). The
// outcome is reported through events: Finalized on success, SubmitFailed and
// a return to ConfirmPending on failure.
func (s *Session) ConfirmSubmit() error {
	return s.do(func() error {
		if s.store.Empty() {
			return ErrEmptySession
		}
		if s.state != model.StateConfirmPending {
			return ErrNotActive
		}
		s.beginFinalize(false)
		return nil
	})
}

type pendingWrite struct {
	questionID string
	choice     model.Choice
}

// beginFinalize enters Submitting, which freezes the countdown and cancels
// all autosave arms, then sends every unsaved answer and completes the exam.
// It is only reachable from Active or ConfirmPending, so it runs at most
// once per Submitting entry.
func (s *Session) beginFinalize(forced bool) {
	s.countdown.Stop()
	s.autosave.CancelAll()
	s.setState(model.StateSubmitting)

	var writes []pendingWrite
	for _, qid := range s.store.Unsaved() {
		c, _ := s.store.Answer(qid)
		s.store.MarkInflight(qid, c)
		writes = append(writes, pendingWrite{questionID: qid, choice: c})
		s.emit(Event{Kind: EventFlushIssued, QuestionID: qid, Choice: c, Reason: ReasonSubmit})
	}

	s.log.Info().
		Bool("forced", forced).
		Int("unsaved", len(writes)).
		Msg("Submitting exam")

	sessionID := s.paper.SessionID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		saveErrs := make([]error, len(writes))
		for i, w := range writes {
			saveErrs[i] = s.backend.SubmitAnswer(s.ctx, sessionID, w.questionID, w.choice)
		}
		err := s.backend.CompleteExam(s.ctx, sessionID)
		s.post(func() {
			for i, w := range writes {
				s.onSaved(w.questionID, w.choice, ReasonSubmit, saveErrs[i])
			}
			s.onCompleted(forced, err)
		})
	}()
}

func (s *Session) onCompleted(forced bool, err error) {
	if s.state != model.StateSubmitting {
		return
	}
	if err == nil {
		s.finalize(forced, nil)
		return
	}

	if forced {
		// Time is spent, there is nothing to go back to.
		s.log.Error().Err(err).Msg("Forced submission failed, finalizing anyway")
		s.finalize(forced, err)
		return
	}

	s.log.Warn().Err(err).Msg("Submission failed")
	s.lastErr = err
	s.setState(model.StateConfirmPending)
	s.emit(Event{Kind: EventSubmitFailed, Err: err})

	s.countdown.Start()
	for _, qid := range s.store.Unsaved() {
		s.autosave.Arm(qid)
	}
}

func (s *Session) finalize(forced bool, err error) {
	s.countdown.Stop()
	s.autosave.CancelAll()
	s.lastErr = err
	s.setState(model.StateFinalized)

	path := model.ResultsPath(s.paper.SessionID)
	s.log.Info().
		Bool("forced", forced).
		Str("results", path).
		Msg("Session finalized")
	s.emit(Event{Kind: EventFinalized, Forced: forced, ResultsPath: path, Err: err})
	s.publish()
	s.doneOnce.Do(func() { close(s.done) })
}
