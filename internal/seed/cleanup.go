package seed

import (
	"context"
	"time"

	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// CleanupTask describes one cache-pruning run: remove every cached tile
// within Coverage at Levels, optionally restricted to tiles older than
// MaxAge (age-based expiry rather than a full wipe).
//
// Grounded on mapproxy.seed.seeder.CleanupTask.
type CleanupTask struct {
	Name     string
	Grid     *tilecache.Grid
	MetaGrid *tilecache.MetaGrid
	Manager  *tilecache.TileManager
	Coverage coverage.Coverage
	Levels   []int

	// RemoveAll, when true, removes every cached tile in scope regardless
	// of age; otherwise only tiles with TimestampCreated older than MaxAge
	// are removed.
	RemoveAll bool
	MaxAge    time.Duration
}

// Cleaner runs CleanupTasks the same way Seeder runs SeedTasks, sharing
// the JobStore/ProgressSink wiring.
type Cleaner struct {
	log      *zap.SugaredLogger
	jobs     *JobStore
	progress ProgressSink
}

// NewCleaner builds a cleaner. jobs/progress may be nil.
func NewCleaner(log *zap.SugaredLogger, jobs *JobStore, progress ProgressSink) *Cleaner {
	if progress == nil {
		progress = NullSink{}
	}
	return &Cleaner{log: log, jobs: jobs, progress: progress}
}

// Run removes every matching tile in task, returning the job id.
func (c *Cleaner) Run(ctx context.Context, task CleanupTask, concurrency int, dryRun bool) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	jobID := id.String()

	if c.jobs != nil {
		c.jobs.Start(JobRecord{
			ID:        jobID,
			Kind:      "cleanup",
			Coverage:  task.Name,
			Levels:    joinLevels(task.Levels),
			StartedAt: time.Now(),
			Outcome:   "running",
		})
	}

	maxAge := task.MaxAge
	handleStale := !task.RemoveAll
	if task.RemoveAll {
		maxAge = 0
	}

	walker := NewTileWalker(c.log, task.Grid, task.MetaGrid, task.Manager, ModeCleanup, WalkOptions{
		Levels:      task.Levels,
		Coverage:    task.Coverage,
		HandleStale: handleStale,
		MaxAge:      maxAge,
		Concurrency: concurrency,
		DryRun:      dryRun,
		JobID:       jobID,
		Progress:    c.progress,
	})

	err = walker.Walk(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.jobs != nil {
		c.jobs.Finish(jobID, walker.tilesDone, outcome, err)
	}
	return jobID, err
}
