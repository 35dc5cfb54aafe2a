package tilecache

// MetaTileCrop is a tile's position within its metatile image, in tile
// units from the metatile's top-left corner (image coordinates, not the
// grid's bottom-left tile coordinates).
type MetaTileCrop struct {
	Col, Row int
}

// MetaGrid groups a Grid's tiles into larger "metatiles" fetched as a
// single upstream request and split locally, with an optional pixel buffer
// around the edge to avoid visible seams from label/edge rendering.
//
// Grounded on mapproxy.core.grid.MetaGrid.
type MetaGrid struct {
	grid      *Grid
	metaSize  [2]int // tiles per metatile, [cols, rows]
	metaBuffer int    // pixel buffer added on every edge
}

// NewMetaGrid builds a MetaGrid over grid with the given meta size (tiles)
// and buffer (pixels).
func NewMetaGrid(grid *Grid, metaSize [2]int, metaBuffer int) *MetaGrid {
	if metaSize[0] < 1 {
		metaSize[0] = 1
	}
	if metaSize[1] < 1 {
		metaSize[1] = 1
	}
	return &MetaGrid{grid: grid, metaSize: metaSize, metaBuffer: metaBuffer}
}

// MetaSize returns the configured [cols, rows] of tiles per metatile,
// clamped to the level's actual grid size (a metatile can't be larger than
// the pyramid level it covers).
//
// Grounded on mapproxy.core.grid.MetaGrid.meta_size.
func (m *MetaGrid) MetaSize(level int) ([2]int, error) {
	size, err := m.grid.GridSize(level)
	if err != nil {
		return [2]int{}, err
	}
	cols, rows := m.metaSize[0], m.metaSize[1]
	if cols > size[0] {
		cols = size[0]
	}
	if rows > size[1] {
		rows = size[1]
	}
	return [2]int{cols, rows}, nil
}

// mainTile returns the metatile's anchor tile: the tile whose coordinates
// are an exact multiple of the (clamped) meta size at its level.
func (m *MetaGrid) mainTile(c TileCoord) (TileCoord, error) {
	metaSize, err := m.MetaSize(c.Z)
	if err != nil {
		return TileCoord{}, err
	}
	x0 := (c.X / metaSize[0]) * metaSize[0]
	y0 := (c.Y / metaSize[1]) * metaSize[1]
	return TileCoord{X: x0, Y: y0, Z: c.Z}, nil
}

// MetaBBox returns the bbox covered by the metatile containing tile c,
// expanded by metaBuffer pixels on every side.
//
// Grounded on mapproxy.core.grid.MetaGrid.meta_bbox. Level 0 with a single
// grid tile is a degenerate case handled the same way mapproxy does: the
// metatile is exactly the single tile, buffer included.
func (m *MetaGrid) MetaBBox(c TileCoord) (BBox, error) {
	main, err := m.mainTile(c)
	if err != nil {
		return BBox{}, err
	}
	metaSize, err := m.MetaSize(c.Z)
	if err != nil {
		return BBox{}, err
	}
	res, err := m.grid.Resolution(c.Z)
	if err != nil {
		return BBox{}, err
	}
	llBBox, err := m.grid.TileBBox(main)
	if err != nil {
		return BBox{}, err
	}
	tw := float64(m.grid.TileSize[0])
	th := float64(m.grid.TileSize[1])
	width := float64(metaSize[0]) * tw * res
	height := float64(metaSize[1]) * th * res
	buf := float64(m.metaBuffer) * res

	minx := llBBox[0] - buf
	miny := llBBox[1] - buf
	maxx := llBBox[0] + width + buf
	maxy := llBBox[1] + height + buf
	return BBox{minx, miny, maxx, maxy}, nil
}

// TileSize returns the pixel size of a metatile image at level, including
// buffer on both edges.
//
// Grounded on mapproxy.core.grid.MetaGrid.tile_size.
func (m *MetaGrid) TileSize(level int) ([2]int, error) {
	metaSize, err := m.MetaSize(level)
	if err != nil {
		return [2]int{}, err
	}
	w := metaSize[0]*m.grid.TileSize[0] + 2*m.metaBuffer
	h := metaSize[1]*m.grid.TileSize[1] + 2*m.metaBuffer
	return [2]int{w, h}, nil
}

// Tiles enumerates the tiles belonging to the metatile containing c, along
// with each tile's crop position (in tile units) within the metatile
// image. Tiles are yielded row-major, top row first, to match the image's
// top-left origin (the grid's tile Y grows upward from the bottom, the
// image's row grows downward from the top).
//
// Grounded on mapproxy.core.grid.MetaGrid.tiles.
func (m *MetaGrid) Tiles(c TileCoord) ([]TileCoord, []MetaTileCrop, error) {
	main, err := m.mainTile(c)
	if err != nil {
		return nil, nil, err
	}
	metaSize, err := m.MetaSize(c.Z)
	if err != nil {
		return nil, nil, err
	}
	var coords []TileCoord
	var crops []MetaTileCrop
	for row := 0; row < metaSize[1]; row++ {
		// image row 0 is the northernmost (highest Y) tile row.
		gridY := main.Y + (metaSize[1] - 1 - row)
		for col := 0; col < metaSize[0]; col++ {
			gridX := main.X + col
			coords = append(coords, TileCoord{X: gridX, Y: gridY, Z: c.Z})
			crops = append(crops, MetaTileCrop{Col: col, Row: row})
		}
	}
	return coords, crops, nil
}
