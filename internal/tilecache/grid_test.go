package tilecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webMercatorBBox() BBox {
	return BBox{-20037508.34, -20037508.34, 20037508.34, 20037508.34}
}

func TestNewGridRejectsInvalidTileSize(t *testing.T) {
	_, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{0, 256},
		ResType:  ResGlobal,
		Levels:   5,
	})
	assert.Error(t, err)
}

func TestNewGridGlobalResolutionsHalveEachLevel(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   5,
	})
	require.NoError(t, err)
	require.Equal(t, 5, g.Levels())
	for i := 1; i < g.Levels(); i++ {
		assert.InDelta(t, g.Resolutions[i-1]/2, g.Resolutions[i], 1e-6)
	}
}

func TestNewGridSqrt2ResolutionsStepBySqrt2(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResSqrt2,
		Levels:   4,
	})
	require.NoError(t, err)
	for i := 1; i < g.Levels(); i++ {
		assert.InDelta(t, g.Resolutions[i-1]/1.4142135623730951, g.Resolutions[i], 1e-6)
	}
}

func TestNewGridCustomResolutionsRequiresList(t *testing.T) {
	_, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResCustom,
	})
	assert.ErrorContains(t, err, "ResCustom requires Resolutions")
}

func TestGridResolutionAndGridSizeBounds(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   3,
	})
	require.NoError(t, err)

	_, err = g.Resolution(-1)
	assert.ErrorIs(t, err, ErrNoSuchLevel)
	_, err = g.Resolution(3)
	assert.ErrorIs(t, err, ErrNoSuchLevel)

	_, err = g.GridSize(3)
	assert.ErrorIs(t, err, ErrNoSuchLevel)

	size, err := g.GridSize(0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, size)
}

func TestGridTileBBoxRoundTripsWithTile(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   6,
	})
	require.NoError(t, err)

	level := 5
	coord, err := g.Tile(0, 0, level)
	require.NoError(t, err)

	bbox, err := g.TileBBox(coord)
	require.NoError(t, err)
	assert.True(t, bbox[0] <= 0 && bbox[2] > 0)
	assert.True(t, bbox[1] <= 0 && bbox[3] > 0)

	back, err := g.Tile((bbox[0]+bbox[2])/2, (bbox[1]+bbox[3])/2, level)
	require.NoError(t, err)
	assert.Equal(t, coord, back)
}

func TestGridTileOutOfBounds(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   3,
	})
	require.NoError(t, err)

	_, err = g.Tile(g.BBox[2]*2, g.BBox[3]*2, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestGridFlipTileCoordIsInvolution(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   5,
	})
	require.NoError(t, err)

	c := TileCoord{X: 2, Y: 1, Z: 4}
	flipped, err := g.FlipTileCoord(c)
	require.NoError(t, err)
	assert.NotEqual(t, c.Y, flipped.Y)

	back, err := g.FlipTileCoord(flipped)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestGridLimitTileClampsOutOfRangeCoords(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   3,
	})
	require.NoError(t, err)

	size, err := g.GridSize(2)
	require.NoError(t, err)

	clamped, ok := g.LimitTile(TileCoord{X: -5, Y: size[1] + 100, Z: 2})
	require.True(t, ok)
	assert.Equal(t, 0, clamped.X)
	assert.Equal(t, size[1]-1, clamped.Y)

	_, ok = g.LimitTile(TileCoord{X: 0, Y: 0, Z: 99})
	assert.False(t, ok)
}

func TestGridClosestLevelPrefersExactMatch(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   8,
	})
	require.NoError(t, err)

	for level, res := range g.Resolutions {
		assert.Equal(t, level, g.ClosestLevel(res))
	}
}

func TestGridTilesInBBoxCoversFullExtentAtLevelZero(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   3,
	})
	require.NoError(t, err)

	tiles, err := g.TilesInBBox(g.BBox, 0)
	require.NoError(t, err)
	assert.Len(t, tiles, 1)
	assert.Equal(t, TileCoord{X: 0, Y: 0, Z: 0}, tiles[0])
}

func TestGridTilesInBBoxClampsToHalfOfGrid(t *testing.T) {
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   3,
	})
	require.NoError(t, err)

	half := BBox{g.BBox[0], g.BBox[1], (g.BBox[0] + g.BBox[2]) / 2, g.BBox[3]}
	tiles, err := g.TilesInBBox(half, 2)
	require.NoError(t, err)
	for _, tc := range tiles {
		assert.Equal(t, 2, tc.Z)
		assert.GreaterOrEqual(t, tc.X, 0)
	}
	assert.NotEmpty(t, tiles)
}

func TestBBoxWidthHeightAndIntersects(t *testing.T) {
	a := BBox{0, 0, 10, 10}
	assert.Equal(t, 10.0, a.Width())
	assert.Equal(t, 10.0, a.Height())

	overlapping := BBox{5, 5, 15, 15}
	assert.True(t, a.intersects(overlapping))

	disjoint := BBox{20, 20, 30, 30}
	assert.False(t, a.intersects(disjoint))

	inner := BBox{1, 1, 2, 2}
	assert.True(t, a.contains(inner))
	assert.False(t, inner.contains(a))
}
