package tilecache

import (
	"fmt"
	"math"
)

// ResolutionType selects how a Grid derives its per-level resolutions when
// they are not given explicitly.
type ResolutionType int

const (
	// ResGlobal halves the resolution at every level, starting from a
	// resolution that fits the whole bbox into a single top-level tile.
	ResGlobal ResolutionType = iota
	// ResSqrt2 inserts an intermediate level between each power-of-two
	// step, for finer-grained zoom (resolution ratio sqrt(2) per level).
	ResSqrt2
	// ResCustom uses exactly the resolutions passed to NewGrid.
	ResCustom
)

// Length of one degree at the equator for geodetic grids, and the default
// Grid.StretchFactor.
const (
	metersPerUnitGeographic = 111319.4907932736 // meters per degree at the equator
	stretchFactorDefault    = 1.15
)

// BBox is a [minx, miny, maxx, maxy] bounding box in a Grid's SRS.
type BBox [4]float64

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }

func (b BBox) contains(o BBox) bool {
	return b[0] <= o[0] && b[1] <= o[1] && b[2] >= o[2] && b[3] >= o[3]
}

func (b BBox) intersects(o BBox) bool {
	return b[0] < o[2] && b[2] > o[0] && b[1] < o[3] && b[3] > o[1]
}

// TileCoord identifies a single tile within a Grid's pyramid.
type TileCoord struct {
	X, Y, Z int
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Grid describes a tile pyramid: an SRS, an origin bbox, a tile pixel size
// and a list of per-level resolutions (meters or degrees per pixel).
//
// Grounded on mapproxy.core.grid.TileGrid: levels are indexed from the
// coarsest (0) to finest, resolutions strictly decreasing by level.
type Grid struct {
	SRSCode     string
	BBox        BBox
	TileSize    [2]int
	IsGeodetic  bool
	Resolutions []float64

	// gridSizes[level] = [cols, rows] of tiles at that level.
	gridSizes [][2]int

	StretchFactor  float64
	MaxShrinkFactor float64
}

// GridOptions configures NewGrid. Zero values pick the historical MapProxy
// defaults (global resolution policy, stretch factor 1.15).
type GridOptions struct {
	SRSCode        string
	BBox           BBox
	TileSize       [2]int
	IsGeodetic     bool
	ResType        ResolutionType
	Levels         int       // used with ResGlobal/ResSqrt2
	Resolutions    []float64 // used with ResCustom
	StretchFactor  float64
	MaxShrinkFactor float64
}

// NewGrid builds a Grid from options, computing resolutions and per-level
// grid sizes the way mapproxy.core.grid.TileGrid._calc_res /
// TileGrid._calc_grids do.
func NewGrid(o GridOptions) (*Grid, error) {
	if o.TileSize[0] <= 0 || o.TileSize[1] <= 0 {
		return nil, fmt.Errorf("tilecache: invalid tile size %v", o.TileSize)
	}
	g := &Grid{
		SRSCode:        o.SRSCode,
		BBox:           o.BBox,
		TileSize:       o.TileSize,
		IsGeodetic:     o.IsGeodetic,
		StretchFactor:  o.StretchFactor,
		MaxShrinkFactor: o.MaxShrinkFactor,
	}
	if g.StretchFactor <= 0 {
		g.StretchFactor = stretchFactorDefault
	}
	if g.MaxShrinkFactor <= 0 {
		g.MaxShrinkFactor = 4.0
	}

	switch o.ResType {
	case ResCustom:
		if len(o.Resolutions) == 0 {
			return nil, fmt.Errorf("tilecache: ResCustom requires Resolutions")
		}
		g.Resolutions = append([]float64(nil), o.Resolutions...)
	case ResGlobal, ResSqrt2:
		levels := o.Levels
		if levels <= 0 {
			levels = 20
		}
		base := initialResolution(o.BBox, o.TileSize, o.IsGeodetic)
		g.Resolutions = pyramidResolutions(base, levels, o.ResType == ResSqrt2)
	default:
		return nil, fmt.Errorf("tilecache: unknown resolution type %d", o.ResType)
	}

	g.gridSizes = make([][2]int, len(g.Resolutions))
	for i, res := range g.Resolutions {
		cols := int(math.Ceil(o.BBox.Width()/res/float64(o.TileSize[0]) - 1e-9))
		rows := int(math.Ceil(o.BBox.Height()/res/float64(o.TileSize[1]) - 1e-9))
		if cols < 1 {
			cols = 1
		}
		if rows < 1 {
			rows = 1
		}
		g.gridSizes[i] = [2]int{cols, rows}
	}
	return g, nil
}

// initialResolution picks the coarsest resolution that fits the whole bbox
// into a single tile, mirroring TileGrid._calc_res base-level derivation.
func initialResolution(bbox BBox, tileSize [2]int, geodetic bool) float64 {
	resX := bbox.Width() / float64(tileSize[0])
	resY := bbox.Height() / float64(tileSize[1])
	if resX > resY {
		return resX
	}
	return resY
}

// pyramidResolutions halves (or sqrt(2)-steps) a base resolution `levels`
// times, matching TileGrid._calc_res's geometric progression.
func pyramidResolutions(base float64, levels int, sqrt2 bool) []float64 {
	res := make([]float64, 0, levels)
	cur := base
	factor := 0.5
	if sqrt2 {
		factor = 1.0 / math.Sqrt2
	}
	for i := 0; i < levels; i++ {
		res = append(res, cur)
		cur *= factor
	}
	return res
}

// Levels returns the number of zoom levels in the grid.
func (g *Grid) Levels() int { return len(g.Resolutions) }

// Resolution returns the resolution (units per pixel) at a level.
func (g *Grid) Resolution(level int) (float64, error) {
	if level < 0 || level >= len(g.Resolutions) {
		return 0, ErrNoSuchLevel
	}
	return g.Resolutions[level], nil
}

// GridSize returns the [cols, rows] tile counts at a level.
func (g *Grid) GridSize(level int) ([2]int, error) {
	if level < 0 || level >= len(g.gridSizes) {
		return [2]int{}, ErrNoSuchLevel
	}
	return g.gridSizes[level], nil
}

// ClosestLevel finds the pyramid level whose resolution is closest to res,
// biased by StretchFactor (a level up to StretchFactor times coarser than
// the exact match is still preferred over the next finer level) and bounded
// by MaxShrinkFactor (never pick a level that would require shrinking
// source imagery by more than that factor).
//
// Grounded on mapproxy.core.grid.TileGrid.closest_level.
func (g *Grid) ClosestLevel(res float64) int {
	best := 0
	bestRatio := math.Inf(1)
	for level, r := range g.Resolutions {
		ratio := r / res
		if ratio < 1 {
			ratio = 1 / ratio
		}
		// Reject levels that would require shrinking beyond the configured
		// bound, unless it is the only candidate available.
		if ratio > g.MaxShrinkFactor && level != 0 && level != len(g.Resolutions)-1 {
			continue
		}
		effective := ratio
		if r >= res {
			// coarser-or-equal resolutions get the stretch discount, since
			// up-sampling a coarser tile is preferred to fetching a finer
			// one and discarding detail.
			effective = ratio / g.StretchFactor
		}
		if effective < bestRatio {
			bestRatio = effective
			best = level
		}
	}
	return best
}

// Tile returns the tile coordinate containing point (x,y) at the given
// level, via floor division of grid-relative pixel position.
//
// Grounded on mapproxy.core.grid.TileGrid.tile.
func (g *Grid) Tile(x, y float64, level int) (TileCoord, error) {
	res, err := g.Resolution(level)
	if err != nil {
		return TileCoord{}, err
	}
	size, _ := g.GridSize(level)
	tx := int(math.Floor((x - g.BBox[0]) / res / float64(g.TileSize[0])))
	ty := int(math.Floor((y - g.BBox[1]) / res / float64(g.TileSize[1])))
	if tx < 0 || ty < 0 || tx >= size[0] || ty >= size[1] {
		return TileCoord{}, ErrOutOfBounds
	}
	return TileCoord{X: tx, Y: ty, Z: level}, nil
}

// FlipTileCoord flips a tile's Y axis between the cache's "origin at
// bottom-left" convention and a consumer's "origin at top-left" convention
// (TMS vs XYZ/Slippy Map).
func (g *Grid) FlipTileCoord(c TileCoord) (TileCoord, error) {
	size, err := g.GridSize(c.Z)
	if err != nil {
		return TileCoord{}, err
	}
	return TileCoord{X: c.X, Y: size[1] - 1 - c.Y, Z: c.Z}, nil
}

// TileBBox returns the bbox covered by a tile coordinate.
//
// Grounded on mapproxy.core.grid.TileGrid.tile_bbox.
func (g *Grid) TileBBox(c TileCoord) (BBox, error) {
	res, err := g.Resolution(c.Z)
	if err != nil {
		return BBox{}, err
	}
	minx := g.BBox[0] + float64(c.X)*res*float64(g.TileSize[0])
	miny := g.BBox[1] + float64(c.Y)*res*float64(g.TileSize[1])
	return BBox{minx, miny, minx + res*float64(g.TileSize[0]), miny + res*float64(g.TileSize[1])}, nil
}

// LimitTile clamps a tile coordinate into the grid's bounds at its level,
// returning false if the coordinate cannot be clamped (level out of range).
//
// Grounded on mapproxy.core.grid.TileGrid.limit_tile.
func (g *Grid) LimitTile(c TileCoord) (TileCoord, bool) {
	size, err := g.GridSize(c.Z)
	if err != nil {
		return TileCoord{}, false
	}
	x, y := c.X, c.Y
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= size[0] {
		x = size[0] - 1
	}
	if y >= size[1] {
		y = size[1] - 1
	}
	return TileCoord{X: x, Y: y, Z: c.Z}, true
}

// AffectedTiles enumerates the tiles intersecting reqBBox at the resolution
// closest to the finer of reqBBox.Width()/size.x and reqBBox.Height()/size.y,
// eroding the request bbox by 1/10th of a pixel before enumerating to avoid
// picking up a neighboring row/col due to floating point noise on an exact
// tile-aligned request. Tiles are returned row by row, top row first, the
// order TileMerger.Merge expects.
//
// Grounded on mapproxy.core.grid.TileGrid.get_affected_tiles (the
// reprojection step for req_srs != grid SRS is handled by the caller,
// which must pass an already-reprojected reqBBox).
func (g *Grid) AffectedTiles(reqBBox BBox, size [2]int) ([]TileCoord, BBox, error) {
	resX := reqBBox.Width() / float64(size[0])
	resY := reqBBox.Height() / float64(size[1])
	res := resX
	if resY < resX {
		res = resY
	}
	level := g.ClosestLevel(res)
	gridRes, err := g.Resolution(level)
	if err != nil {
		return nil, BBox{}, err
	}

	pixelErosionX := gridRes / 10
	pixelErosionY := gridRes / 10
	erodedBBox := BBox{
		reqBBox[0] + pixelErosionX,
		reqBBox[1] + pixelErosionY,
		reqBBox[2] - pixelErosionX,
		reqBBox[3] - pixelErosionY,
	}

	llTile, err := g.Tile(erodedBBox[0], erodedBBox[1], level)
	if err != nil {
		return nil, BBox{}, err
	}
	urTile, err := g.Tile(erodedBBox[2], erodedBBox[3], level)
	if err != nil {
		return nil, BBox{}, err
	}

	var tiles []TileCoord
	for y := urTile.Y; y >= llTile.Y; y-- {
		for x := llTile.X; x <= urTile.X; x++ {
			tiles = append(tiles, TileCoord{X: x, Y: y, Z: level})
		}
	}

	llBBox, err := g.TileBBox(llTile)
	if err != nil {
		return nil, BBox{}, err
	}
	urBBox, err := g.TileBBox(urTile)
	if err != nil {
		return nil, BBox{}, err
	}
	outBBox := BBox{llBBox[0], llBBox[1], urBBox[2], urBBox[3]}
	return tiles, outBBox, nil
}

// TilesInBBox enumerates every grid-aligned tile at level overlapping
// bbox, clamped to the level's bounds. Unlike AffectedTiles it performs no
// resolution selection or sub-pixel erosion — it is used by the seed/
// cleanup walker, which already knows which level it wants and walks
// whole grid cells rather than aligning to an arbitrary request.
//
// Grounded on the tile enumeration mapproxy.seed.seeder.TileWalker performs
// via get_affected_level_tiles.
func (g *Grid) TilesInBBox(bbox BBox, level int) ([]TileCoord, error) {
	res, err := g.Resolution(level)
	if err != nil {
		return nil, err
	}
	size, err := g.GridSize(level)
	if err != nil {
		return nil, err
	}
	minX := int(math.Floor((bbox[0] - g.BBox[0]) / res / float64(g.TileSize[0])))
	minY := int(math.Floor((bbox[1] - g.BBox[1]) / res / float64(g.TileSize[1])))
	maxX := int(math.Floor((bbox[2]-g.BBox[0])/res/float64(g.TileSize[0]) - 1e-9))
	maxY := int(math.Floor((bbox[3]-g.BBox[1])/res/float64(g.TileSize[1]) - 1e-9))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX >= size[0] {
		maxX = size[0] - 1
	}
	if maxY >= size[1] {
		maxY = size[1] - 1
	}

	var tiles []TileCoord
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, TileCoord{X: x, Y: y, Z: level})
		}
	}
	return tiles, nil
}
