// Package restclient talks to the student portal REST API: join, paper,
// state, answer upserts and completion.
package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/transport"
)

const studentPrefix = "/api/v1/student"

// Client is a transport.Client backed by the REST API.
type Client struct {
	api        *baseClient
	examID     uuid.UUID
	entryToken string
	log        zerolog.Logger

	mu      sync.Mutex
	session *model.ExamSession
}

// New builds a client for examID authenticated with a student bearer token.
// entryToken is only needed when the student has not joined yet.
func New(baseURL, examID, token, entryToken string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("invalid exam id %q: %w", examID, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	api := newBaseClient(baseURL, timeout)
	api.setHeader("Authorization", "Bearer "+token)

	return &Client{
		api:        api,
		examID:     id,
		entryToken: entryToken,
		log:        log.With().Str("component", "rest_client").Str("exam_id", examID).Logger(),
	}, nil
}

// Join creates (or returns the existing) exam session.
func (c *Client) Join(ctx context.Context) (*model.ExamSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	var out struct {
		Session model.ExamSession `json:"session"`
	}
	err := c.api.do(ctx, http.MethodPost, c.examPath("join"), model.JoinExamRequest{EntryToken: c.entryToken}, &out)
	if err != nil {
		return nil, fmt.Errorf("join exam: %w", err)
	}
	if out.Session.Status == model.SessionStatusCompleted {
		return nil, &response.APIError{
			Status:  http.StatusConflict,
			Code:    response.ErrSessionCompleted,
			Message: response.GetMessage(response.ErrSessionCompleted),
		}
	}

	c.session = &out.Session
	c.log.Info().Str("session_id", out.Session.ID.String()).Msg("Joined exam")
	return c.session, nil
}

// LoadPaper joins if needed and fetches the question paper.
func (c *Client) LoadPaper(ctx context.Context) (*model.Paper, error) {
	sess, err := c.Join(ctx)
	if err != nil {
		return nil, err
	}

	var payload model.ExamPayload
	if err := c.api.do(ctx, http.MethodGet, c.examPath("paper"), nil, &payload); err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return payload.ToPaper(sess.ID.String())
}

// LoadState fetches the server-side answers and remaining time. It returns
// nil when the server has no state for the session.
func (c *Client) LoadState(ctx context.Context) (*model.ResumeState, error) {
	var state model.ExamSessionState
	err := c.api.do(ctx, http.MethodGet, c.examPath("state"), nil, &state)
	if err != nil {
		var apiErr *response.APIError
		if errors.As(err, &apiErr) && apiErr.Code == response.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get state: %w", err)
	}
	return state.ToResume(), nil
}

type answerRequest struct {
	Answer string `json:"ans"`
}

// SubmitAnswer upserts one answer.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	if err := c.checkSession(sessionID); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/sessions/%s/answers/%s", studentPrefix, url.PathEscape(sessionID), url.PathEscape(questionID))
	if err := c.api.do(ctx, http.MethodPut, endpoint, answerRequest{Answer: string(choice)}, nil); err != nil {
		return fmt.Errorf("save answer %s: %w", questionID, err)
	}
	return nil
}

// CompleteExam closes the session.
func (c *Client) CompleteExam(ctx context.Context, sessionID string) error {
	if err := c.checkSession(sessionID); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/sessions/%s/complete", studentPrefix, url.PathEscape(sessionID))
	if err := c.api.do(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("complete exam: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.api.client.CloseIdleConnections()
	return nil
}

func (c *Client) checkSession(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return transport.ErrNotJoined
	}
	if c.session.ID.String() != sessionID {
		return fmt.Errorf("%w: %s", transport.ErrSessionMismatch, sessionID)
	}
	return nil
}

func (c *Client) examPath(action string) string {
	return fmt.Sprintf("%s/exams/%s/%s", studentPrefix, c.examID, action)
}
