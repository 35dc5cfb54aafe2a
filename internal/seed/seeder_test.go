package seed

import (
	"context"
	"os"
	"testing"

	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeederRunSeedsWithinCoverage(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)

	jobID, err := seeder.Run(context.Background(), SeedTask{
		Name:     "full-extent",
		Grid:     g,
		MetaGrid: metaGrid,
		Manager:  mgr,
		Coverage: coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)},
		Levels:   []int{0, 1},
	}, 2, false)

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.True(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))
}

func TestSeederRunRebuildSwapsCacheInPlace(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)
	fc := mgr.Cache.(*tilecache.FileCache)

	_, err := seeder.Run(context.Background(), SeedTask{
		Name:     "full-extent",
		Grid:     g,
		MetaGrid: metaGrid,
		Manager:  mgr,
		Coverage: coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)},
		Levels:   []int{0},
		Rebuild:  true,
	}, 1, false)

	require.NoError(t, err)
	cached, err := fc.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0})
	require.NoError(t, err)
	assert.True(t, cached)

	_, statErr := os.Stat(fc.Root + ".rebuild")
	assert.True(t, os.IsNotExist(statErr))
}

func TestSeederRunDryRunLeavesJobIDButNoTiles(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)

	jobID, err := seeder.Run(context.Background(), SeedTask{
		Name:     "full-extent",
		Grid:     g,
		MetaGrid: metaGrid,
		Manager:  mgr,
		Coverage: coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)},
		Levels:   []int{0},
	}, 1, true)

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.False(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))
}

func TestJoinLevels(t *testing.T) {
	assert.Equal(t, "0,2,4", joinLevels([]int{0, 2, 4}))
	assert.Equal(t, "", joinLevels(nil))
}
