package examsession

import "errors"

var (
	// ErrNotActive is returned for an operation the current submission state forbids.
	ErrNotActive = errors.New("exam session is not active")
	// ErrEmptySession is returned for any mutating operation on a session without questions.
	ErrEmptySession = errors.New("exam session has no questions")
	// ErrUnknownQuestion is returned when selecting an answer for a question outside the paper.
	ErrUnknownQuestion = errors.New("question is not part of this session")
	// ErrInvalidChoice is returned for a choice outside A–D.
	ErrInvalidChoice = errors.New("choice must be one of A, B, C, D")
	// ErrOutOfRange is returned by JumpTo for an index outside the question list.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrNotStarted is returned when an operation is issued before Start.
	ErrNotStarted = errors.New("exam session has not been started")
	// ErrClosed is returned once the session loop has stopped.
	ErrClosed = errors.New("exam session is closed")
)
