package seed

import (
	"context"
	"testing"

	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanerRunRemovesAll(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)
	cov := coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)}

	_, err := seeder.Run(context.Background(), SeedTask{
		Grid: g, MetaGrid: metaGrid, Manager: mgr, Coverage: cov, Levels: []int{0},
	}, 1, false)
	require.NoError(t, err)
	require.True(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))

	cleaner := NewCleaner(zap.NewNop().Sugar(), nil, nil)
	jobID, err := cleaner.Run(context.Background(), CleanupTask{
		Grid:      g,
		MetaGrid:  metaGrid,
		Manager:   mgr,
		Coverage:  cov,
		Levels:    []int{0},
		RemoveAll: true,
	}, 1, false)

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.False(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))
}

func TestCleanerRunRemoveAllIgnoresMaxAge(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)
	cov := coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)}

	_, err := seeder.Run(context.Background(), SeedTask{
		Grid: g, MetaGrid: metaGrid, Manager: mgr, Coverage: cov, Levels: []int{0},
	}, 1, false)
	require.NoError(t, err)

	cleaner := NewCleaner(zap.NewNop().Sugar(), nil, nil)
	_, err = cleaner.Run(context.Background(), CleanupTask{
		Grid:      g,
		MetaGrid:  metaGrid,
		Manager:   mgr,
		Coverage:  cov,
		Levels:    []int{0},
		RemoveAll: true,
		MaxAge:    24 * 60 * 60 * 1e9, // a day; irrelevant since RemoveAll bypasses age filtering
	}, 1, false)

	require.NoError(t, err)
	assert.False(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))
}

func TestCleanerRunDryRunLeavesTilesCached(t *testing.T) {
	g, metaGrid, mgr := testWalkerGrid(t)
	seeder := NewSeeder(zap.NewNop().Sugar(), nil, nil)
	cov := coverage.BBoxCoverage{BBox: coverage.BBox(g.BBox)}

	_, err := seeder.Run(context.Background(), SeedTask{
		Grid: g, MetaGrid: metaGrid, Manager: mgr, Coverage: cov, Levels: []int{0},
	}, 1, false)
	require.NoError(t, err)

	cleaner := NewCleaner(zap.NewNop().Sugar(), nil, nil)
	_, err = cleaner.Run(context.Background(), CleanupTask{
		Grid:      g,
		MetaGrid:  metaGrid,
		Manager:   mgr,
		Coverage:  cov,
		Levels:    []int{0},
		RemoveAll: true,
	}, 1, true)

	require.NoError(t, err)
	assert.True(t, mgr.IsCached(tilecache.TileCoord{X: 0, Y: 0, Z: 0}))
}
