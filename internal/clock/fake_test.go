package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAfterAdvancesAndRecords(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	fired := <-c.After(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), fired)
	assert.Equal(t, start.Add(3*time.Second), c.Now())

	<-c.After(0)
	require.Equal(t, []time.Duration{3 * time.Second, 0}, c.Sleeps())
}

func TestFakeOnAfterHook(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	var seen []time.Duration
	c.OnAfter(func(d time.Duration) { seen = append(seen, d) })

	<-c.After(time.Minute)
	<-c.After(time.Second)

	assert.Equal(t, []time.Duration{time.Minute, time.Second}, seen)
}

func TestFakeAdvanceDoesNotRecord(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	c.Advance(time.Hour)

	assert.Equal(t, time.Unix(0, 0).Add(time.Hour), c.Now())
	assert.Empty(t, c.Sleeps())
}
