package terminal

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/examsession"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Action
	}{
		{"select lower", "b", []Action{{Kind: ActionSelect, Choice: model.ChoiceB}}},
		{"select upper", "D", []Action{{Kind: ActionSelect, Choice: model.ChoiceD}}},
		{"next and previous", "np", []Action{{Kind: ActionNext}, {Kind: ActionPrevious}}},
		{"arrows", "\x1b[C\x1b[D", []Action{{Kind: ActionNext}, {Kind: ActionPrevious}}},
		{"lone escape", "\x1b", []Action{{Kind: ActionCancel}}},
		{"jump", "3", []Action{{Kind: ActionJump, Index: 2}}},
		{"submit flow", "sy", []Action{{Kind: ActionSubmit}, {Kind: ActionConfirm}}},
		{"quit", "\x03", []Action{{Kind: ActionQuit}}},
		{"unknown ignored", "z0\r", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKeys([]byte(tt.in)))
		})
	}
}

func sampleSnapshot() model.Snapshot {
	q := model.Question{
		ID:           "q2",
		QuestionText: "What is the SI unit of force?",
		Options: map[model.Choice]string{
			model.ChoiceA: "Joule", model.ChoiceB: "Newton", model.ChoiceC: "Watt", model.ChoiceD: "Pascal",
		},
		Points: 5,
	}
	return model.Snapshot{
		SessionID:       "sess-9",
		Title:           "Physics",
		State:           model.StateActive,
		Cursor:          1,
		QuestionCount:   3,
		QuestionIDs:     []string{"q1", "q2", "q3"},
		Current:         &q,
		Answers:         map[string]model.Choice{"q1": model.ChoiceA, "q2": model.ChoiceB},
		AnsweredCount:   2,
		ProgressPercent: 200.0 / 3,
		Remaining:       299,
		Urgency:         model.UrgencyCritical,
	}
}

func TestRenderActive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSnapshot(), "Answer saved."))
	out := buf.String()

	assert.Contains(t, out, "Physics")
	assert.Contains(t, out, colorRed+"4:59")
	assert.Contains(t, out, "2/3 answered (67%)")
	assert.Contains(t, out, "1* [2*] 3")
	assert.Contains(t, out, "Question 2 of 3 (5 pts)")
	assert.Contains(t, out, "> B. Newton")
	assert.Contains(t, out, "  A. Joule")
	assert.Contains(t, out, "Answer saved.")
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}

func TestRenderStates(t *testing.T) {
	snap := sampleSnapshot()

	var buf bytes.Buffer
	snap.State = model.StateConfirmPending
	require.NoError(t, Render(&buf, snap, ""))
	assert.Contains(t, buf.String(), "Submit now? 2 of 3 answered")

	buf.Reset()
	snap.State = model.StateFinalized
	snap.ResultsPath = model.ResultsPath("sess-9")
	require.NoError(t, Render(&buf, snap, ""))
	assert.Contains(t, buf.String(), "/student/results/sess-9")

	buf.Reset()
	require.NoError(t, Render(&buf, model.Snapshot{Empty: true, State: model.StateActive}, ""))
	assert.Contains(t, buf.String(), "no questions")
	assert.NotContains(t, buf.String(), "[s] submit")
}

type fakeSession struct {
	mu     sync.Mutex
	snap   model.Snapshot
	calls  []string
	events chan examsession.Event
	done   chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		snap:   sampleSnapshot(),
		events: make(chan examsession.Event, 4),
		done:   make(chan struct{}),
	}
}

func (f *fakeSession) log(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeSession) SelectCurrent(c model.Choice) error { return f.log("select " + string(c)) }
func (f *fakeSession) Next() error                        { return f.log("next") }
func (f *fakeSession) Previous() error                    { return f.log("previous") }
func (f *fakeSession) JumpTo(i int) error {
	if i >= 3 {
		return examsession.ErrOutOfRange
	}
	return f.log("jump")
}
func (f *fakeSession) RequestSubmit() error {
	f.mu.Lock()
	f.snap.State = model.StateConfirmPending
	f.mu.Unlock()
	return f.log("request")
}
func (f *fakeSession) CancelSubmit() error  { return f.log("cancel") }
func (f *fakeSession) ConfirmSubmit() error { return f.log("confirm") }
func (f *fakeSession) Snapshot() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}
func (f *fakeSession) Events() <-chan examsession.Event { return f.events }
func (f *fakeSession) Done() <-chan struct{}            { return f.done }

func (f *fakeSession) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestRunDispatchesKeysUntilQuit(t *testing.T) {
	sess := newFakeSession()
	var out bytes.Buffer
	ui := New(strings.NewReader("cn9sn\x1b[Dq"), &out, zerolog.Nop())

	err := ui.Run(context.Background(), sess)
	require.ErrorIs(t, err, ErrQuit)

	// n while confirm is pending cancels instead of moving on.
	assert.Equal(t, []string{"select C", "next", "request", "cancel", "previous"}, sess.recorded())
}

func TestRunReturnsWhenSessionFinalizes(t *testing.T) {
	sess := newFakeSession()
	sess.events <- examsession.Event{Kind: examsession.EventFinalized, Forced: true}
	sess.snap.State = model.StateFinalized
	sess.snap.ResultsPath = model.ResultsPath("sess-9")
	close(sess.done)

	var out bytes.Buffer
	ui := New(strings.NewReader(""), &out, zerolog.Nop())
	require.NoError(t, ui.Run(context.Background(), sess))
	assert.Contains(t, out.String(), "Time is up")
	assert.Contains(t, out.String(), "/student/results/sess-9")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ui := New(strings.NewReader(""), &bytes.Buffer{}, zerolog.Nop())
	assert.ErrorIs(t, ui.Run(ctx, newFakeSession()), context.Canceled)
}
