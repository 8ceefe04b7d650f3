package examsession

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		remaining int
		want      model.Urgency
	}{
		{remaining: 3600, want: model.UrgencyNormal},
		{remaining: 901, want: model.UrgencyNormal},
		{remaining: 900, want: model.UrgencyWarning},
		{remaining: 301, want: model.UrgencyWarning},
		{remaining: 300, want: model.UrgencyCritical},
		{remaining: 0, want: model.UrgencyCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.remaining), "remaining=%d", tt.remaining)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "15:00", FormatClock(900))
	assert.Equal(t, "4:59", FormatClock(299))
	assert.Equal(t, "0:05", FormatClock(5))
	assert.Equal(t, "0:00", FormatClock(-3))
	assert.Equal(t, "120:00", FormatClock(7200))
}

func TestCountdown_TickFloorsAtZero(t *testing.T) {
	c := NewCountdown(clockwork.NewFakeClock(), 2500*time.Millisecond)
	assert.Equal(t, 2, c.Remaining())

	assert.False(t, c.Tick())
	assert.True(t, c.Tick(), "reaching zero reports expiry")
	assert.False(t, c.Tick(), "expiry is reported once")
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdown_StartStop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := NewCountdown(fc, 10*time.Second)

	assert.Nil(t, c.C())
	c.Start()
	assert.True(t, c.Running())
	assert.NotNil(t, c.C())

	c.Stop()
	assert.False(t, c.Running())
	assert.Nil(t, c.C())

	expired := NewCountdown(fc, 0)
	expired.Start()
	assert.False(t, expired.Running(), "nothing to count down")
}
