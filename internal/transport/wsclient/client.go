// Package wsclient persists answers over the exam stream WebSocket
// (/ws/v1/student/exams/:exam_id/stream).
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/transport"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

// Client sends autosave and submit actions over one lazily dialled
// connection. Round trips are serialized; a broken connection is dropped and
// redialled on the next call.
type Client struct {
	streamURL string
	sessionID string
	timeout   time.Duration
	dialer    *websocket.Dialer
	log       zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	lastScore *float64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each round trip when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSessionID pins the client to one session; calls naming another fail.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New builds a client for examID. baseURL is the ws(s):// origin of the backend.
func New(baseURL, examID, token string, log zerolog.Logger, opts ...Option) (*Client, error) {
	if _, err := uuid.Parse(examID); err != nil {
		return nil, fmt.Errorf("invalid exam id %q: %w", examID, err)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ws base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws/v1/student/exams/" + examID + "/stream"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	c := &Client{
		streamURL: u.String(),
		timeout:   10 * time.Second,
		dialer:    websocket.DefaultDialer,
		log:       log.With().Str("component", "ws_client").Str("exam_id", examID).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitAnswer sends an autosave action and waits for the success event.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	if err := c.checkSession(sessionID); err != nil {
		return err
	}
	// The server refuses anything that is not a UUID.
	if _, err := uuid.Parse(questionID); err != nil {
		return fmt.Errorf("%w: invalid q_id %q", transport.ErrRejected, questionID)
	}

	msg, err := c.roundTrip(ctx, ws.AutosaveRequest{
		Action: ws.ActionAutosave,
		QID:    questionID,
		Answer: string(choice),
	})
	if err != nil {
		return fmt.Errorf("autosave %s: %w", questionID, err)
	}
	if msg.Event != ws.EventSuccess {
		return fmt.Errorf("autosave %s: unexpected event %q", questionID, msg.Event)
	}
	return nil
}

// CompleteExam sends the submit action and waits for the graded event.
func (c *Client) CompleteExam(ctx context.Context, sessionID string) error {
	if err := c.checkSession(sessionID); err != nil {
		return err
	}

	msg, err := c.roundTrip(ctx, ws.SubmitRequest{Action: ws.ActionSubmit})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if msg.Event != ws.EventGraded {
		return fmt.Errorf("submit: unexpected event %q", msg.Event)
	}

	if score, ok := msg.GradedScore(); ok {
		c.mu.Lock()
		c.lastScore = &score
		c.mu.Unlock()
		c.log.Info().Float64("score", score).Str("status", msg.StatusText()).Msg("Exam graded")
	}
	return nil
}

// Ping checks the stream is reachable.
func (c *Client) Ping(ctx context.Context) error {
	msg, err := c.roundTrip(ctx, ws.PingRequest{Action: ws.ActionPing})
	if err != nil {
		return err
	}
	if msg.Event != ws.EventPong {
		return fmt.Errorf("ping: unexpected event %q", msg.Event)
	}
	return nil
}

// Score returns the score of the last graded submit, if any.
func (c *Client) Score() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastScore == nil {
		return 0, false
	}
	return *c.lastScore, true
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) checkSession(sessionID string) error {
	if c.sessionID != "" && sessionID != c.sessionID {
		return fmt.Errorf("%w: %s", transport.ErrSessionMismatch, sessionID)
	}
	return nil
}

// roundTrip writes one request and reads the reply under the client lock.
func (c *Client) roundTrip(ctx context.Context, req interface{}) (*ws.ServerMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return nil, err
		}
	}
	conn := c.conn

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	// Unblock the read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := ws.WriteTyped(conn, req, deadline); err != nil {
		c.drop(err)
		return nil, ctxErr(ctx, err)
	}
	msg, err := ws.ReadMessage(conn, deadline)
	if err != nil {
		c.drop(err)
		return nil, ctxErr(ctx, err)
	}
	if msg.Event == ws.EventError {
		return nil, fmt.Errorf("%w: %s", transport.ErrRejected, msg.Error)
	}
	return msg, nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.streamURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial exam stream: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial exam stream: %w", err)
	}
	c.conn = conn
	c.log.Debug().Msg("Exam stream connected")
	return nil
}

// drop discards a connection after an I/O error. Caller holds c.mu.
func (c *Client) drop(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Warn().Err(err).Msg("Exam stream closed unexpectedly")
	} else {
		c.log.Debug().Err(err).Msg("Exam stream dropped")
	}
	c.conn.Close()
	c.conn = nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}
