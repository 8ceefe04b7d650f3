package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// AutosaveRequest saves a single answer.
type AutosaveRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// SubmitRequest finishes and grades the exam.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// PingRequest checks the connection is alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

// ServerMessage is any frame the exam stream sends. Older servers put
// status and score at the top level, newer ones nest them under data.
type ServerMessage struct {
	Event  Event           `json:"event"`
	Status string          `json:"status,omitempty"`
	Score  *float64        `json:"score,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type resultData struct {
	Status string   `json:"status"`
	Score  *float64 `json:"score"`
}

func (m *ServerMessage) nested() resultData {
	var d resultData
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &d)
	}
	return d
}

// StatusText returns the status field wherever the server put it.
func (m *ServerMessage) StatusText() string {
	if m.Status != "" {
		return m.Status
	}
	return m.nested().Status
}

// GradedScore returns the score of a graded event.
func (m *ServerMessage) GradedScore() (float64, bool) {
	if m.Score != nil {
		return *m.Score, true
	}
	if s := m.nested().Score; s != nil {
		return *s, true
	}
	return 0, false
}
