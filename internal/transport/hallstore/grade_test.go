package hallstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	key := map[string]string{"q1": "A", "q2": "B", "q3": "C", "q4": "D"}

	score, correct := grade(key, map[string]string{"q1": "A", "q2": "C", "q4": "D", "extra": "A"})
	assert.Equal(t, 2, correct)
	assert.InDelta(t, 50.0, score, 0.0001)

	score, correct = grade(nil, map[string]string{"q1": "A"})
	assert.Zero(t, correct)
	assert.Zero(t, score)
}

func TestRemainingAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 30*time.Minute, remainingAt(start, 60, start.Add(30*time.Minute)))
	assert.Equal(t, time.Duration(0), remainingAt(start, 60, start.Add(2*time.Hour)))
	assert.Equal(t, 15*time.Minute, remainingAt(start, 0, start), "missing duration uses the default")
}

func TestMonitorEventShape(t *testing.T) {
	raw, err := json.Marshal(monitorEvent{Type: "answer", StudentID: 7, ExamID: "e", Timestamp: 1, Data: map[string]interface{}{"q_id": "q"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"answer","student_id":7,"exam_id":"e","timestamp":1,"data":{"q_id":"q"}}`, string(raw))
}
