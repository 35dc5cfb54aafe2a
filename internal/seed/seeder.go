package seed

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// SeedTask describes one seeding run: which levels of which manager to
// build, within which coverage, and how.
//
// Grounded on mapproxy.seed.seeder.SeedTask.
type SeedTask struct {
	Name     string
	Grid     *tilecache.Grid
	MetaGrid *tilecache.MetaGrid
	Manager  *tilecache.TileManager
	Coverage coverage.Coverage
	Levels   []int

	RefreshStale bool
	MaxAge       time.Duration

	// Rebuild, when true, builds this task's levels into a throwaway
	// FileCache rooted at Root+".rebuild" and swaps it in with
	// tilecache.SwapDir once the walk completes successfully, so readers
	// never see a half-seeded level. Only meaningful when Manager.Cache is
	// a *tilecache.FileCache.
	Rebuild bool
}

// Seeder runs SeedTasks, optionally recording history via a JobStore and
// reporting progress via a ProgressSink.
//
// Grounded on mapproxy.seed.seeder.seed() (the top-level driver that runs
// a list of tasks, handles dry_run and progress_logger).
type Seeder struct {
	log      *zap.SugaredLogger
	jobs     *JobStore // nil disables history
	progress ProgressSink
}

// NewSeeder builds a seeder. jobs/progress may be nil.
func NewSeeder(log *zap.SugaredLogger, jobs *JobStore, progress ProgressSink) *Seeder {
	if progress == nil {
		progress = NullSink{}
	}
	return &Seeder{log: log, jobs: jobs, progress: progress}
}

// Run seeds task, returning the job id assigned to the run.
func (s *Seeder) Run(ctx context.Context, task SeedTask, concurrency int, dryRun bool) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	jobID := id.String()

	if s.jobs != nil {
		s.jobs.Start(JobRecord{
			ID:            jobID,
			Kind:          "seed",
			Coverage:      task.Name,
			Levels:        joinLevels(task.Levels),
			StartedAt:     time.Now(),
			Outcome:       "running",
		})
	}

	manager := task.Manager
	var rebuildDir string
	if task.Rebuild && !dryRun {
		fc, ok := manager.Cache.(*tilecache.FileCache)
		if ok {
			rebuildDir = fc.Root + ".rebuild"
			rebuildCache := tilecache.NewFileCache(rebuildDir, fc.FileExt)
			rebuildCache.LinkSingleColorImages = fc.LinkSingleColorImages
			manager = tilecache.NewTileManager(s.log, task.Grid, task.MetaGrid, rebuildCache, manager.Source, fc.FileExt)
			defer manager.Close()
		}
	}

	walker := NewTileWalker(s.log, task.Grid, task.MetaGrid, manager, ModeSeed, WalkOptions{
		Levels:                 task.Levels,
		Coverage:               task.Coverage,
		HandleStale:            task.RefreshStale,
		MaxAge:                 task.MaxAge,
		SkipGeomsForLastLevels: 0,
		Concurrency:            concurrency,
		DryRun:                 dryRun,
		JobID:                  jobID,
		Progress:               s.progress,
	})

	walkErr := walker.Walk(ctx)

	if walkErr == nil && rebuildDir != "" {
		fc := task.Manager.Cache.(*tilecache.FileCache)
		oldDst, swapErr := tilecache.SwapDir(rebuildDir, fc.Root)
		if swapErr != nil {
			walkErr = swapErr
		} else if oldDst != "" {
			os.RemoveAll(oldDst)
		}
	} else if rebuildDir != "" {
		os.RemoveAll(rebuildDir)
	}

	outcome := "ok"
	if walkErr != nil {
		outcome = "error"
	}
	if s.jobs != nil {
		s.jobs.Finish(jobID, walker.tilesDone, outcome, walkErr)
	}
	return jobID, walkErr
}

func joinLevels(levels []int) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, ",")
}
