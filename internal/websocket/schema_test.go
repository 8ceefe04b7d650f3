package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) *ServerMessage {
	t.Helper()
	var m ServerMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return &m
}

func TestGradedScoreTopLevel(t *testing.T) {
	m := decode(t, `{"event":"graded","status":"COMPLETED","score":87.5}`)
	score, ok := m.GradedScore()
	assert.True(t, ok)
	assert.Equal(t, 87.5, score)
	assert.Equal(t, "COMPLETED", m.StatusText())
}

func TestGradedScoreNested(t *testing.T) {
	m := decode(t, `{"event":"graded","data":{"status":"COMPLETED","score":0}}`)
	score, ok := m.GradedScore()
	assert.True(t, ok)
	assert.Zero(t, score)
	assert.Equal(t, "COMPLETED", m.StatusText())
}

func TestSuccessHasNoScore(t *testing.T) {
	m := decode(t, `{"event":"success"}`)
	_, ok := m.GradedScore()
	assert.False(t, ok)
	assert.Empty(t, m.StatusText())
}

func TestAutosaveRequestWireFormat(t *testing.T) {
	b, err := json.Marshal(AutosaveRequest{Action: ActionAutosave, QID: "q-1", Answer: "C"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"autosave","q_id":"q-1","ans":"C"}`, string(b))
}
