package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
)

const defaultEventBuffer = 64

type request struct {
	fn    func() error
	reply chan error
}

// Session is the exam session state machine. All state lives on one loop
// goroutine: user operations, countdown ticks, autosave fires and the
// completions of backend calls are serialized through it. Backend calls run
// on their own goroutines and report back to the loop.
type Session struct {
	paper         model.Paper
	backend       Backend
	recorder      Recorder
	clock         clockwork.Clock
	log           zerolog.Logger
	autosaveDelay time.Duration
	eventBuffer   int
	resume        *model.ResumeState

	// Loop-owned state.
	store     *Store
	countdown *Countdown
	autosave  *Autosaver
	state     model.SubmissionState
	lastErr   error

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	running   atomic.Bool
	wg        sync.WaitGroup

	requests chan request
	fired    chan autosaveFire
	results  chan func()
	events   chan Event

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once

	mu   sync.RWMutex
	snap model.Snapshot
}

// New creates a session over paper. The session is Active but idle until
// Start is called.
func New(paper *model.Paper, backend Backend, opts ...Option) (*Session, error) {
	if paper == nil {
		return nil, errors.New("paper is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	seen := make(map[string]struct{}, len(paper.Questions))
	for _, q := range paper.Questions {
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	s := &Session{
		paper:         *paper,
		backend:       backend,
		clock:         clockwork.NewRealClock(),
		log:           zerolog.Nop(),
		autosaveDelay: DefaultAutosaveDelay,
		eventBuffer:   defaultEventBuffer,
		state:         model.StateActive,
		requests:      make(chan request),
		fired:         make(chan autosaveFire),
		results:       make(chan func()),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().
		Str("component", "exam_session").
		Str("session_id", paper.SessionID).
		Logger()
	s.events = make(chan Event, s.eventBuffer)

	s.store = NewStore(paper.Questions)
	total := paper.Duration()
	if s.resume != nil {
		total = s.resume.Remaining
		s.store.Restore(s.resume.Persisted, s.resume.Unsaved)
	}
	s.countdown = NewCountdown(s.clock, total)
	s.publish()

	return s, nil
}

// Start launches the session loop. The countdown begins immediately; a
// session resumed with no time left is submitted straight away. Calling
// Start more than once has no effect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.autosave = newAutosaver(s.clock, s.autosaveDelay, s.fired, s.ctx.Done(), &s.wg)
		s.wg.Add(1)
		s.running.Store(true)
		go s.loop()
	})
}

// Close stops the loop, cancels every timer and in-flight backend call, and
// waits for all session goroutines to exit. The event channel is closed.
func (s *Session) Close() {
	if !s.running.Load() {
		return
	}
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		close(s.events)
	})
}

// Events delivers session events. Events are dropped when the buffer is full.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session reaches Finalized.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns a copy of the state as of the last processed event.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Answers = make(map[string]model.Choice, len(s.snap.Answers))
	for k, v := range s.snap.Answers {
		snap.Answers[k] = v
	}
	if s.snap.Current != nil {
		q := *s.snap.Current
		snap.Current = &q
	}
	snap.Unsaved = append([]string(nil), s.snap.Unsaved...)
	return snap
}

func (s *Session) loop() {
	defer s.wg.Done()

	s.boot()
	s.publish()

	for {
		select {
		case <-s.ctx.Done():
			s.countdown.Stop()
			s.autosave.CancelAll()
			s.publish()
			return
		case req := <-s.requests:
			req.reply <- req.fn()
		case <-s.countdown.C():
			s.onTick()
		case f := <-s.fired:
			s.onAutosave(f)
		case fn := <-s.results:
			fn()
		}
		s.publish()
	}
}

func (s *Session) boot() {
	if s.store.Empty() {
		s.log.Warn().Msg("Session has no questions")
		return
	}
	for _, qid := range s.store.Unsaved() {
		s.autosave.Arm(qid)
	}
	if s.countdown.Remaining() == 0 {
		s.log.Warn().Msg("Session started with no time left")
		s.beginFinalize(true)
		return
	}
	s.countdown.Start()
	s.log.Info().
		Int("questions", s.store.Len()).
		Int("remaining", s.countdown.Remaining()).
		Msg("Session started")
}

// do runs fn on the loop and returns its result.
func (s *Session) do(fn func() error) error {
	if !s.running.Load() {
		return ErrNotStarted
	}
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.ctx.Done():
		return ErrClosed
	}
	return <-req.reply
}

// post hands a completion back to the loop. It gives up once the session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.results <- fn:
	case <-s.ctx.Done():
	}
}

// guardActive rejects operations outside Active.
func (s *Session) guardActive() error {
	if s.store.Empty() {
		return ErrEmptySession
	}
	if s.state != model.StateActive {
		return ErrNotActive
	}
	return nil
}

func (s *Session) setState(next model.SubmissionState) {
	if s.state == next {
		return
	}
	s.log.Debug().
		Str("from", string(s.state)).
		Str("to", string(next)).
		Msg("State changed")
	s.state = next
	s.emit(Event{Kind: EventStateChanged})
}

func (s *Session) emit(e Event) {
	e.State = s.state
	e.Cursor = s.store.Cursor()
	e.Remaining = s.countdown.Remaining()
	select {
	case s.events <- e:
	default:
		s.log.Debug().Str("event", string(e.Kind)).Msg("Event dropped, channel full")
	}
}

func (s *Session) publish() {
	snap := model.Snapshot{
		SessionID:       s.paper.SessionID,
		Title:           s.paper.Title,
		State:           s.state,
		Empty:           s.store.Empty(),
		Cursor:          s.store.Cursor(),
		QuestionCount:   s.store.Len(),
		QuestionIDs:     s.store.IDs(),
		Answers:         s.store.Answers(),
		Unsaved:         s.store.Unsaved(),
		AnsweredCount:   s.store.AnsweredCount(),
		ProgressPercent: s.store.ProgressPercent(),
		Remaining:       s.countdown.Remaining(),
		Urgency:         s.countdown.Urgency(),
	}
	if q, ok := s.store.CurrentQuestion(); ok {
		snap.Current = &q
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	if s.state == model.StateFinalized {
		snap.ResultsPath = model.ResultsPath(s.paper.SessionID)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Session) onTick() {
	if s.state != model.StateActive && s.state != model.StateConfirmPending {
		return
	}
	expired := s.countdown.Tick()
	s.emit(Event{Kind: EventTick})
	if expired {
		s.log.Info().Msg("Time is up, submitting")
		s.beginFinalize(true)
	}
}
