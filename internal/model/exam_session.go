package model

// SubmissionState enumerates the session's submission lifecycle.
type SubmissionState string

const (
	StateActive         SubmissionState = "ACTIVE"
	StateConfirmPending SubmissionState = "CONFIRM_PENDING"
	StateSubmitting     SubmissionState = "SUBMITTING"
	StateFinalized      SubmissionState = "FINALIZED"
)

// Urgency classifies remaining time for display.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// Snapshot is a read-only copy of the session state, safe to hand to renderers.
type Snapshot struct {
	SessionID       string            `json:"session_id"`
	Title           string            `json:"title"`
	State           SubmissionState   `json:"state"`
	Empty           bool              `json:"empty"`
	Cursor          int               `json:"cursor"`
	QuestionCount   int               `json:"question_count"`
	QuestionIDs     []string          `json:"question_ids"`
	Current         *Question         `json:"current,omitempty"`
	Answers         map[string]Choice `json:"answers"`
	Unsaved         []string          `json:"unsaved,omitempty"`
	AnsweredCount   int               `json:"answered_count"`
	ProgressPercent float64           `json:"progress_percent"`
	Remaining       int               `json:"remaining_seconds"`
	Urgency         Urgency           `json:"urgency"`
	LastError       string            `json:"last_error,omitempty"`
	ResultsPath     string            `json:"results_path,omitempty"`
}

// Selected returns the choice recorded for the current question, if any.
func (s Snapshot) Selected() (Choice, bool) {
	if s.Current == nil {
		return "", false
	}
	c, ok := s.Answers[s.Current.ID]
	return c, ok
}

// IsAnswered reports whether questionID has a recorded choice.
func (s Snapshot) IsAnswered(questionID string) bool {
	_, ok := s.Answers[questionID]
	return ok
}

// ResultsPath is where the results view for a finalized session lives.
func ResultsPath(sessionID string) string {
	return "/student/results/" + sessionID
}
