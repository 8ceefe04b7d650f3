package examsession

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultAutosaveDelay is how long an answer may sit unsaved after it changed.
const DefaultAutosaveDelay = 30 * time.Second

// autosaveFire is delivered to the session loop when an arm expires.
type autosaveFire struct {
	questionID string
	token      uint64
}

type arm struct {
	token  uint64
	timer  clockwork.Timer
	cancel chan struct{}
}

// Autosaver keeps at most one pending write token per question. Arming a
// question replaces its previous token, so a superseded timer can never
// deliver a stale write.
type Autosaver struct {
	clock   clockwork.Clock
	delay   time.Duration
	fired   chan<- autosaveFire
	done    <-chan struct{}
	wg      *sync.WaitGroup
	seq     uint64
	pending map[string]*arm
}

func newAutosaver(clock clockwork.Clock, delay time.Duration, fired chan<- autosaveFire, done <-chan struct{}, wg *sync.WaitGroup) *Autosaver {
	return &Autosaver{
		clock:   clock,
		delay:   delay,
		fired:   fired,
		done:    done,
		wg:      wg,
		pending: make(map[string]*arm),
	}
}

// Arm (re)schedules the delayed write for questionID.
func (a *Autosaver) Arm(questionID string) {
	a.Cancel(questionID)

	a.seq++
	p := &arm{
		token:  a.seq,
		timer:  a.clock.NewTimer(a.delay),
		cancel: make(chan struct{}),
	}
	a.pending[questionID] = p

	a.wg.Add(1)
	go func(questionID string, p *arm) {
		defer a.wg.Done()
		select {
		case <-p.timer.Chan():
			select {
			case a.fired <- autosaveFire{questionID: questionID, token: p.token}:
			case <-p.cancel:
			case <-a.done:
			}
		case <-p.cancel:
		case <-a.done:
		}
	}(questionID, p)
}

// Cancel drops the pending arm for questionID, if any.
func (a *Autosaver) Cancel(questionID string) {
	p, ok := a.pending[questionID]
	if !ok {
		return
	}
	stopAndDrainTimer(p.timer)
	close(p.cancel)
	delete(a.pending, questionID)
}

// CancelAll drops every pending arm.
func (a *Autosaver) CancelAll() {
	for qid := range a.pending {
		a.Cancel(qid)
	}
}

// Accept consumes a fire if its token is still the live one for the question.
func (a *Autosaver) Accept(f autosaveFire) bool {
	p, ok := a.pending[f.questionID]
	if !ok || p.token != f.token {
		return false
	}
	delete(a.pending, f.questionID)
	return true
}

// Pending returns the number of armed questions.
func (a *Autosaver) Pending() int { return len(a.pending) }

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
