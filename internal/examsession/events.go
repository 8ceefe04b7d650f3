package examsession

import "github.com/stemsi/exstem-client/internal/model"

// EventKind identifies what happened in the session.
type EventKind string

const (
	EventStateChanged     EventKind = "state_changed"
	EventCursorMoved      EventKind = "cursor_moved"
	EventTick             EventKind = "tick"
	EventFlushIssued      EventKind = "flush_issued"
	EventAnswerSaved      EventKind = "answer_saved"
	EventAnswerSaveFailed EventKind = "answer_save_failed"
	EventSubmitFailed     EventKind = "submit_failed"
	EventFinalized        EventKind = "finalized"
)

// FlushReason says why an answer was sent to the backend.
type FlushReason string

const (
	ReasonAutosave FlushReason = "autosave"
	ReasonNavigate FlushReason = "navigate"
	ReasonSubmit   FlushReason = "submit"
)

// Event is emitted on the session's event channel. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind        EventKind
	State       model.SubmissionState
	Cursor      int
	Remaining   int
	QuestionID  string
	Choice      model.Choice
	Reason      FlushReason
	Forced      bool
	ResultsPath string
	Err         error
}
