package seed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/geocache/tileserver/internal/asyncpool"
	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"go.uber.org/zap"
)

// Mode selects whether a walk builds missing/stale tiles or removes them.
type Mode int

const (
	ModeSeed Mode = iota
	ModeCleanup
)

// WalkOptions configures a TileWalker run.
//
// Grounded on mapproxy.seed.seeder.SeedTask/CleanupTask construction
// parameters and the seed()/cleanup() top-level driver functions.
type WalkOptions struct {
	Levels                 []int
	Coverage               coverage.Coverage
	HandleStale            bool          // seed also rebuilds tiles older than MaxAge
	MaxAge                 time.Duration // used when HandleStale is set
	SkipGeomsForLastLevels int
	Concurrency            int
	DryRun                 bool
	JobID                  string
	Progress               ProgressSink
}

// TileWalker descends a Grid's pyramid level by level within a Coverage,
// dispatching each intersecting metatile's tiles to seed or cleanup.
//
// Grounded on mapproxy.seed.seeder.TileWalker.
type TileWalker struct {
	grid     *tilecache.Grid
	metaGrid *tilecache.MetaGrid
	manager  *tilecache.TileManager
	mode     Mode
	opts     WalkOptions
	log      *zap.SugaredLogger

	pool      *asyncpool.Pool
	eta       *ETA
	tilesDone int64
	tilesSeen int64
}

// NewTileWalker builds a walker. metaGrid should have zero buffer for
// walking purposes (mapproxy.seed.seeder.TileWalker builds its own
// buffer-less MetaGrid for exactly this reason — the buffer only matters
// when actually rendering, not when grouping tiles for dispatch).
func NewTileWalker(log *zap.SugaredLogger, grid *tilecache.Grid, metaGrid *tilecache.MetaGrid, manager *tilecache.TileManager, mode Mode, opts WalkOptions) *TileWalker {
	if opts.Progress == nil {
		opts.Progress = NullSink{}
	}
	return &TileWalker{grid: grid, metaGrid: metaGrid, manager: manager, mode: mode, opts: opts, log: log}
}

// Walk runs the descent, returning once every intersecting tile at every
// requested level has been handled (or the first error is hit).
//
// Grounded on mapproxy.seed.seeder.TileWalker.walk.
func (w *TileWalker) Walk(ctx context.Context) error {
	if len(w.opts.Levels) == 0 {
		return nil
	}
	levels := append([]int(nil), w.opts.Levels...)
	sort.Ints(levels)
	w.opts.Levels = levels

	w.pool = asyncpool.New(w.opts.Concurrency)
	w.eta = NewETA()

	return w.walk(ctx, coverage.BBox(w.grid.BBox), 0, false)
}

func mainTileFor(metaGrid *tilecache.MetaGrid, coord tilecache.TileCoord) (tilecache.TileCoord, error) {
	metaSize, err := metaGrid.MetaSize(coord.Z)
	if err != nil {
		return tilecache.TileCoord{}, err
	}
	return tilecache.TileCoord{X: (coord.X / metaSize[0]) * metaSize[0], Y: (coord.Y / metaSize[1]) * metaSize[1], Z: coord.Z}, nil
}

func (w *TileWalker) walk(ctx context.Context, bbox coverage.BBox, levelIdx int, allSubtiles bool) error {
	if levelIdx >= len(w.opts.Levels) {
		return nil
	}
	level := w.opts.Levels[levelIdx]
	remaining := len(w.opts.Levels) - levelIdx
	if w.opts.SkipGeomsForLastLevels > 0 && remaining <= w.opts.SkipGeomsForLastLevels {
		allSubtiles = true
	}

	tiles, err := w.grid.TilesInBBox(tilecache.BBox(bbox), level)
	if err != nil {
		return fmt.Errorf("seed: tiles at level %d: %w", level, err)
	}

	mains := map[tilecache.TileCoord]bool{}
	for _, t := range tiles {
		main, err := mainTileFor(w.metaGrid, t)
		if err != nil {
			return err
		}
		mains[main] = true
	}

	type matched struct {
		main        tilecache.TileCoord
		metaBBox    tilecache.BBox
		intersection coverage.Intersection
	}
	var matches []matched
	for main := range mains {
		metaBBox, err := w.metaGrid.MetaBBox(main)
		if err != nil {
			return err
		}
		intersection := coverage.Contains
		if !allSubtiles {
			intersection = w.opts.Coverage.Intersection(coverage.BBox(metaBBox))
		}
		if intersection == coverage.None {
			continue
		}
		matches = append(matches, matched{main: main, metaBBox: metaBBox, intersection: intersection})
	}

	if len(matches) > 0 {
		tasks := make([]asyncpool.Task, len(matches))
		for i, mt := range matches {
			mt := mt
			tasks[i] = func(ctx context.Context) (interface{}, error) {
				return nil, w.handleMetatile(ctx, mt.main)
			}
		}
		if _, err := w.pool.Run(ctx, tasks); err != nil {
			return err
		}
	}

	w.tilesSeen += int64(len(mains))
	w.reportProgress(levelIdx, level)

	for _, mt := range matches {
		nextAllSubtiles := allSubtiles || mt.intersection == coverage.Contains
		if err := w.walk(ctx, coverage.BBox(mt.metaBBox), levelIdx+1, nextAllSubtiles); err != nil {
			return err
		}
	}
	return nil
}

// handleMetatile builds (seed) or removes (cleanup) every tile belonging
// to the metatile anchored at main, applying HandleStale/DryRun.
//
// Grounded on mapproxy.seed.seeder.TileSeedWorker/TileCleanupWorker.
func (w *TileWalker) handleMetatile(ctx context.Context, main tilecache.TileCoord) error {
	members, _, err := w.metaGrid.Tiles(main)
	if err != nil {
		return err
	}

	var targets []tilecache.TileCoord
	for _, c := range members {
		switch w.mode {
		case ModeSeed:
			if !w.manager.IsCached(c) || (w.opts.HandleStale && w.manager.IsStale(c, w.opts.MaxAge)) {
				targets = append(targets, c)
			}
		case ModeCleanup:
			if !w.manager.IsCached(c) {
				continue
			}
			if w.opts.HandleStale && !w.manager.IsStale(c, w.opts.MaxAge) {
				continue
			}
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		w.bumpDone(len(members))
		return nil
	}
	if w.opts.DryRun {
		w.bumpDone(len(members))
		return nil
	}

	var err2 error
	switch w.mode {
	case ModeSeed:
		_, err2 = w.manager.LoadTileCoords(ctx, targets)
	case ModeCleanup:
		err2 = w.manager.RemoveTileCoords(targets)
	}
	w.bumpDone(len(members))
	return err2
}

func (w *TileWalker) bumpDone(n int) {
	w.tilesDone += int64(n)
}

func (w *TileWalker) reportProgress(levelIdx, level int) {
	total := float64(len(w.opts.Levels))
	if total == 0 {
		return
	}
	progress := float64(levelIdx) / total
	w.eta.Update(progress)
	w.opts.Progress.Report(ProgressEvent{
		JobID:     w.opts.JobID,
		Level:     level,
		Progress:  progress,
		TilesDone: w.tilesDone,
		ETA:       w.eta.String(),
		At:        time.Now(),
	})
}
