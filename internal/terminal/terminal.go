// Package terminal is the key-driven front-end of the exam client. It draws
// session snapshots and turns key presses into session operations.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/examsession"
	"github.com/stemsi/exstem-client/internal/model"
	"golang.org/x/term"
)

// ErrQuit is returned by Run when the student leaves before finalization.
var ErrQuit = errors.New("student quit the exam client")

// Session is the part of *examsession.Session the terminal drives.
type Session interface {
	SelectCurrent(choice model.Choice) error
	Next() error
	Previous() error
	JumpTo(index int) error
	RequestSubmit() error
	CancelSubmit() error
	ConfirmSubmit() error
	Snapshot() model.Snapshot
	Events() <-chan examsession.Event
	Done() <-chan struct{}
}

// UI owns the terminal for the lifetime of one session.
type UI struct {
	in     io.Reader
	out    io.Writer
	log    zerolog.Logger
	status string
}

// New creates a UI reading keys from in and drawing to out.
func New(in io.Reader, out io.Writer, log zerolog.Logger) *UI {
	return &UI{in: in, out: out, log: log.With().Str("component", "terminal").Logger()}
}

// Run puts the input terminal in raw mode (when it is one) and serves the
// session until it finalizes, the student quits, or ctx is cancelled.
func (u *UI) Run(ctx context.Context, sess Session) error {
	if f, ok := u.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), old)
	}

	keys := make(chan []Action, 8)
	go u.readKeys(keys)

	u.draw(sess.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-sess.Done():
			u.drainEvents(sess)
			u.draw(sess.Snapshot())
			return nil

		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			u.onEvent(ev)
			u.draw(sess.Snapshot())

		case actions, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			for _, a := range actions {
				if a.Kind == ActionQuit {
					return ErrQuit
				}
				u.apply(sess, a)
			}
			u.draw(sess.Snapshot())
		}
	}
}

func (u *UI) readKeys(out chan<- []Action) {
	defer close(out)
	buf := make([]byte, 64)
	for {
		n, err := u.in.Read(buf)
		if n > 0 {
			if actions := ParseKeys(buf[:n]); len(actions) > 0 {
				out <- actions
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				u.log.Warn().Err(err).Msg("Key input closed")
			}
			return
		}
	}
}

func (u *UI) apply(sess Session, a Action) {
	var err error
	state := sess.Snapshot().State

	switch a.Kind {
	case ActionSelect:
		err = sess.SelectCurrent(a.Choice)
	case ActionNext:
		if state == model.StateConfirmPending {
			err = sess.CancelSubmit()
			break
		}
		err = sess.Next()
	case ActionPrevious:
		err = sess.Previous()
	case ActionJump:
		err = sess.JumpTo(a.Index)
	case ActionSubmit:
		err = sess.RequestSubmit()
	case ActionConfirm:
		err = sess.ConfirmSubmit()
	case ActionCancel:
		err = sess.CancelSubmit()
	}

	if err != nil {
		u.status = describe(err)
		u.log.Debug().Err(err).Int("action", int(a.Kind)).Msg("Action rejected")
		return
	}
	u.status = ""
}

func (u *UI) onEvent(ev examsession.Event) {
	switch ev.Kind {
	case examsession.EventAnswerSaved:
		u.status = "Answer saved."
	case examsession.EventAnswerSaveFailed:
		u.status = "Answer not saved yet, will retry: " + errText(ev.Err)
	case examsession.EventSubmitFailed:
		u.status = "Submit failed: " + errText(ev.Err) + ". Press y to retry."
	case examsession.EventFinalized:
		if ev.Forced {
			u.status = "Time is up. Your answers were submitted."
		} else {
			u.status = "Your answers were submitted."
		}
		if ev.Err != nil {
			u.status += " (server error: " + errText(ev.Err) + ")"
		}
	}
}

func (u *UI) drainEvents(sess Session) {
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			u.onEvent(ev)
		default:
			return
		}
	}
}

func (u *UI) draw(snap model.Snapshot) {
	if err := Render(u.out, snap, u.status); err != nil {
		u.log.Error().Err(err).Msg("Failed to render")
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, examsession.ErrNotActive):
		return "Not available right now."
	case errors.Is(err, examsession.ErrEmptySession):
		return "This exam has no questions."
	case errors.Is(err, examsession.ErrOutOfRange):
		return "No question with that number."
	}
	return err.Error()
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
