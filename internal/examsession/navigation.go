package examsession

// Next flushes the displayed answer and advances the cursor. On the last
// question the flush still happens but the cursor stays.
func (s *Session) Next() error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		q, _ := s.store.CurrentQuestion()
		s.flush(q.ID, ReasonNavigate)
		s.moveTo(s.store.Cursor() + 1)
		return nil
	})
}

// Previous moves the cursor back one question. It is a no-op on the first question.
func (s *Session) Previous() error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		if s.store.Cursor() == 0 {
			return nil
		}
		s.leaveCurrent()
		s.moveTo(s.store.Cursor() - 1)
		return nil
	})
}

// JumpTo moves the cursor to index.
func (s *Session) JumpTo(index int) error {
	return s.do(func() error {
		if err := s.guardActive(); err != nil {
			return err
		}
		if index < 0 || index >= s.store.Len() {
			return ErrOutOfRange
		}
		if index == s.store.Cursor() {
			return nil
		}
		s.leaveCurrent()
		s.moveTo(index)
		return nil
	})
}

// leaveCurrent flushes the outgoing answer before the cursor moves.
func (s *Session) leaveCurrent() {
	if q, ok := s.store.CurrentQuestion(); ok {
		s.flush(q.ID, ReasonNavigate)
	}
}

func (s *Session) moveTo(index int) {
	if index == s.store.Cursor() || !s.store.MoveTo(index) {
		return
	}
	s.emit(Event{Kind: EventCursorMoved})
}
