package tilecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T, levels int) *Grid {
	t.Helper()
	g, err := NewGrid(GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     webMercatorBBox(),
		TileSize: [2]int{256, 256},
		ResType:  ResGlobal,
		Levels:   levels,
	})
	require.NoError(t, err)
	return g
}

func TestMetaGridMetaSizeClampsToGridSize(t *testing.T) {
	g := testGrid(t, 3)
	mg := NewMetaGrid(g, [2]int{4, 4}, 0)

	size, err := mg.MetaSize(0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, size)

	size, err = mg.MetaSize(2)
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 4}, size)
}

func TestNewMetaGridClampsZeroSizeToOne(t *testing.T) {
	g := testGrid(t, 3)
	mg := NewMetaGrid(g, [2]int{0, 0}, 0)
	size, err := mg.MetaSize(0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, size)
}

func TestMetaGridTileSizeIncludesBuffer(t *testing.T) {
	g := testGrid(t, 5)
	mg := NewMetaGrid(g, [2]int{2, 2}, 10)

	size, err := mg.TileSize(4)
	require.NoError(t, err)
	assert.Equal(t, [2]int{2*256 + 20, 2*256 + 20}, size)
}

func TestMetaGridTilesReturnsWholeMetatileFromAnyMember(t *testing.T) {
	g := testGrid(t, 5)
	mg := NewMetaGrid(g, [2]int{2, 2}, 0)

	coordsA, cropsA, err := mg.Tiles(TileCoord{X: 0, Y: 0, Z: 4})
	require.NoError(t, err)
	coordsB, _, err := mg.Tiles(TileCoord{X: 1, Y: 1, Z: 4})
	require.NoError(t, err)

	assert.ElementsMatch(t, coordsA, coordsB)
	assert.Len(t, coordsA, 4)
	assert.Len(t, cropsA, 4)
}

func TestMetaGridTilesCropOriginIsTopLeft(t *testing.T) {
	g := testGrid(t, 5)
	mg := NewMetaGrid(g, [2]int{2, 2}, 0)

	coords, crops, err := mg.Tiles(TileCoord{X: 0, Y: 0, Z: 4})
	require.NoError(t, err)

	for i, crop := range crops {
		if crop.Row == 0 {
			// top image row must be the tile with the highest grid Y.
			for j, other := range crops {
				if other.Col == crop.Col && other.Row > crop.Row {
					assert.Greater(t, coords[i].Y, coords[j].Y)
				}
			}
		}
	}
}

func TestMetaGridMetaBBoxExpandsByBuffer(t *testing.T) {
	g := testGrid(t, 5)
	mgNoBuffer := NewMetaGrid(g, [2]int{2, 2}, 0)
	mgBuffered := NewMetaGrid(g, [2]int{2, 2}, 10)

	plain, err := mgNoBuffer.MetaBBox(TileCoord{X: 0, Y: 0, Z: 4})
	require.NoError(t, err)
	buffered, err := mgBuffered.MetaBBox(TileCoord{X: 0, Y: 0, Z: 4})
	require.NoError(t, err)

	assert.Less(t, buffered[0], plain[0])
	assert.Less(t, buffered[1], plain[1])
	assert.Greater(t, buffered[2], plain[2])
	assert.Greater(t, buffered[3], plain[3])
}
