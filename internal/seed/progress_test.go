package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	events []ProgressEvent
}

func (s *recordingSink) Report(ev ProgressEvent) {
	s.events = append(s.events, ev)
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	multi := MultiSink{a, b}

	ev := ProgressEvent{JobID: "job-1", Level: 2, Progress: 0.5, At: time.Now()}
	multi.Report(ev)

	require := assert.New(t)
	require.Len(a.events, 1)
	require.Len(b.events, 1)
	require.Equal(ev, a.events[0])
	require.Equal(ev, b.events[0])
}

func TestNullSinkDiscardsEvents(t *testing.T) {
	var sink NullSink
	assert.NotPanics(t, func() {
		sink.Report(ProgressEvent{JobID: "job-1"})
	})
}

func TestChannelForFormatsJobID(t *testing.T) {
	assert.Equal(t, "seed-progress:abc-123", channelFor("abc-123"))
}
