// Package transport defines what the exam session needs from the outside
// world and the error values its implementations share.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-client/internal/model"
)

var (
	// ErrNotJoined is returned when a call needs a session id that was never obtained.
	ErrNotJoined = errors.New("exam session not joined")
	// ErrSessionMismatch is returned when a call names another session.
	ErrSessionMismatch = errors.New("session id does not match the connected session")
	// ErrRejected wraps a refusal reported by the backend.
	ErrRejected = errors.New("backend rejected the request")
)

// AnswerSubmitter upserts one answer. Implementations must be idempotent.
type AnswerSubmitter interface {
	SubmitAnswer(ctx context.Context, sessionID, questionID string, choice model.Choice) error
}

// ExamCompleter closes a session server-side.
type ExamCompleter interface {
	CompleteExam(ctx context.Context, sessionID string) error
}

// Backend is the persistence collaborator of an exam session.
type Backend interface {
	AnswerSubmitter
	ExamCompleter
}

// PaperLoader provides the bootstrap data for a session.
type PaperLoader interface {
	LoadPaper(ctx context.Context) (*model.Paper, error)
	// LoadState returns nil when there is nothing to resume.
	LoadState(ctx context.Context) (*model.ResumeState, error)
}

// Client is a complete transport: it loads the paper and persists answers.
type Client interface {
	Backend
	PaperLoader
	io.Closer
}

// Kind selects a transport implementation.
type Kind string

const (
	KindWebSocket Kind = "ws"
	KindREST      Kind = "rest"
	KindHall      Kind = "hall"
	KindPractice  Kind = "practice"
)

// ParseKind validates a TRANSPORT value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWebSocket, KindREST, KindHall, KindPractice:
		return k, nil
	}
	return "", fmt.Errorf("unknown transport %q (want ws, rest, hall or practice)", s)
}

// Split combines a paper loader and a separate backend into one Client,
// e.g. REST for the paper and the exam stream for answers.
func Split(loader PaperLoader, backend Backend, closers ...io.Closer) Client {
	return &splitClient{PaperLoader: loader, Backend: backend, closers: closers}
}

type splitClient struct {
	PaperLoader
	Backend
	closers []io.Closer
}

func (c *splitClient) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
