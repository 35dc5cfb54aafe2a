package seed

import "time"

// ProgressEvent reports a walker's position at one point in the pyramid
// descent, the way mapproxy.seed.util.ProgressLog / TileProgressMeter
// report level/progress-path to a pluggable logger.
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Level      int       `json:"level"`
	Progress   float64   `json:"progress"` // 0..1 across the whole job
	TilesDone  int64     `json:"tiles_done"`
	TilesTotal int64     `json:"tiles_total,omitempty"`
	ETA        string    `json:"eta,omitempty"`
	At         time.Time `json:"at"`
}

// ProgressSink receives ProgressEvents as a walk runs. Implementations must
// not block the walker for long — Report is called synchronously from the
// walk goroutine.
type ProgressSink interface {
	Report(ev ProgressEvent)
}

// MultiSink fans a single stream of events out to several sinks (e.g. a
// log sink, a Redis sink and a websocket sink at once).
type MultiSink []ProgressSink

func (m MultiSink) Report(ev ProgressEvent) {
	for _, s := range m {
		s.Report(ev)
	}
}

// NullSink discards every event; the default when no progress reporting
// was configured.
type NullSink struct{}

func (NullSink) Report(ProgressEvent) {}
