package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Action string `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// fakeStream mimics the exam stream handler.
type fakeStream struct {
	t         *testing.T
	mu        sync.Mutex
	got       []received
	dials     int
	failQID   string
	dropAfter int // close the connection after this many frames (0 = never)
	silent    bool
}

func (f *fakeStream) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "student-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.dials++
		f.mu.Unlock()

		frames := 0
		for {
			var msg received
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			f.mu.Lock()
			f.got = append(f.got, msg)
			failQID, dropAfter, silent := f.failQID, f.dropAfter, f.silent
			f.mu.Unlock()
			frames++

			if silent {
				continue
			}
			switch msg.Action {
			case "autosave":
				if msg.QID == failQID {
					_ = conn.WriteJSON(map[string]string{"event": "error", "error": "save failed"})
				} else {
					_ = conn.WriteJSON(map[string]interface{}{"event": "success", "data": map[string]string{"status": "saved"}})
				}
			case "submit":
				_ = conn.WriteJSON(map[string]interface{}{"event": "graded", "data": map[string]interface{}{"status": "completed", "score": 75.0}})
			case "ping":
				_ = conn.WriteJSON(map[string]string{"event": "pong"})
			}
			if dropAfter > 0 && frames >= dropAfter {
				return
			}
		}
	})
}

func (f *fakeStream) frames() []received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]received(nil), f.got...)
}

func (f *fakeStream) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func newTestClient(t *testing.T, f *fakeStream, opts ...Option) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	examID := uuid.New().String()
	c, err := New(srv.URL, examID, "student-token", zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, examID
}

func TestSubmitAnswerAndComplete(t *testing.T) {
	f := &fakeStream{t: t}
	c, _ := newTestClient(t, f)
	ctx := context.Background()
	qid := uuid.New().String()

	require.NoError(t, c.SubmitAnswer(ctx, "sess-1", qid, model.ChoiceB))
	require.NoError(t, c.CompleteExam(ctx, "sess-1"))

	got := f.frames()
	require.Len(t, got, 2)
	assert.Equal(t, received{Action: "autosave", QID: qid, Answer: "B"}, got[0])
	assert.Equal(t, "submit", got[1].Action)
	assert.Equal(t, 1, f.dialCount(), "one connection serves every call")

	score, ok := c.Score()
	require.True(t, ok)
	assert.Equal(t, 75.0, score)
}

func TestSubmitAnswer_ServerError(t *testing.T) {
	qid := uuid.New().String()
	f := &fakeStream{t: t, failQID: qid}
	c, _ := newTestClient(t, f)

	err := c.SubmitAnswer(context.Background(), "sess-1", qid, model.ChoiceA)
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrRejected))

	// The connection survives an application-level error.
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, f.dialCount())
}

func TestSubmitAnswer_RejectsNonUUIDQuestion(t *testing.T) {
	f := &fakeStream{t: t}
	c, _ := newTestClient(t, f)

	err := c.SubmitAnswer(context.Background(), "sess-1", "q1", model.ChoiceA)
	assert.ErrorIs(t, err, transport.ErrRejected)
	assert.Empty(t, f.frames())
}

func TestRedialsAfterDrop(t *testing.T) {
	f := &fakeStream{t: t, dropAfter: 1}
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.SubmitAnswer(ctx, "sess-1", uuid.New().String(), model.ChoiceA))

	// The server hung up after answering; the next write or read fails and
	// the call after that dials again.
	var err error
	for i := 0; i < 3; i++ {
		if err = c.SubmitAnswer(ctx, "sess-1", uuid.New().String(), model.ChoiceC); err == nil {
			break
		}
	}
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.dialCount(), 2)
}

func TestRoundTripHonoursContext(t *testing.T) {
	f := &fakeStream{t: t, silent: true}
	c, _ := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := c.CompleteExam(ctx, "sess-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSessionMismatch(t *testing.T) {
	f := &fakeStream{t: t}
	c, _ := newTestClient(t, f, WithSessionID("sess-1"))

	err := c.CompleteExam(context.Background(), "sess-2")
	assert.ErrorIs(t, err, transport.ErrSessionMismatch)
}

func TestUnauthorizedDial(t *testing.T) {
	f := &fakeStream{t: t}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c, err := New(srv.URL, uuid.New().String(), "wrong", zerolog.Nop())
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNew_RejectsBadExamID(t *testing.T) {
	_, err := New("ws://localhost", "not-a-uuid", "t", zerolog.Nop())
	assert.Error(t, err)
}
