package seed

import (
	"fmt"
	"math"
	"time"
)

// ETA estimates time remaining for a walk by weighting recent progress
// updates more heavily than old ones, so the estimate adapts quickly when
// the walker moves from a sparse area of the pyramid into a dense one (or
// vice versa).
//
// Grounded on mapproxy.seed.util.ETA (referenced from seed/seeder.py
// TileWalker).
type ETA struct {
	start      time.Time
	progresses []float64
	timestamps []time.Time
}

// NewETA starts a new estimator.
func NewETA() *ETA {
	return &ETA{start: time.Now()}
}

// Update records a new overall-progress fraction in [0,1].
func (e *ETA) Update(progress float64) {
	e.progresses = append(e.progresses, progress)
	e.timestamps = append(e.timestamps, time.Now())
	if len(e.progresses) > 200 {
		e.progresses = e.progresses[1:]
		e.timestamps = e.timestamps[1:]
	}
}

// Remaining estimates the time left, weighting later samples with weight
// (i+1)^1.2 so the estimate favors the current rate of progress.
//
// Grounded on mapproxy.seed.util.ETA.eta (weighted moving average of
// elapsed-per-progress across the recorded samples).
func (e *ETA) Remaining() time.Duration {
	n := len(e.progresses)
	if n < 2 {
		return 0
	}
	var weightedRate, weightSum float64
	for i := 1; i < n; i++ {
		dProgress := e.progresses[i] - e.progresses[i-1]
		dTime := e.timestamps[i].Sub(e.timestamps[i-1]).Seconds()
		if dProgress <= 0 || dTime <= 0 {
			continue
		}
		weight := math.Pow(float64(i+1), 1.2)
		weightedRate += weight * (dProgress / dTime)
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	rate := weightedRate / weightSum
	remainingProgress := 1 - e.progresses[n-1]
	if rate <= 0 || remainingProgress <= 0 {
		return 0
	}
	return time.Duration(remainingProgress / rate * float64(time.Second))
}

func (e *ETA) String() string {
	d := e.Remaining()
	if d == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%s remaining", d.Round(time.Second))
}
