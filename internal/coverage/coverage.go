// Package coverage implements the bbox/polygon intersection predicate the
// seeder and cleanup walkers test each metatile against.
package coverage

import "math"

// Intersection classifies how a bbox relates to a Coverage, matching the
// three-way result mapproxy.seed.seeder's TileWalker uses to short-circuit
// further descent: a CONTAINS result means every subtile is implicitly
// covered too, no further geometry tests are needed going down the
// pyramid.
type Intersection int

const (
	None Intersection = iota
	Contains
	Intersects
)

// BBox is a [minx,miny,maxx,maxy] rectangle.
type BBox [4]float64

func (b BBox) contains(o BBox) bool {
	return b[0] <= o[0] && b[1] <= o[1] && b[2] >= o[2] && b[3] >= o[3]
}

func (b BBox) intersects(o BBox) bool {
	return b[0] < o[2] && b[2] > o[0] && b[1] < o[3] && b[3] > o[1]
}

// Coverage is an opaque seed/cleanup area predicate.
//
// Grounded on mapproxy.seed.seeder.SeedTask/CleanupTask.intersects.
type Coverage interface {
	// Intersection classifies bbox relative to the coverage.
	Intersection(bbox BBox) Intersection
	// Extent returns the coverage's own bounding box, used to skip whole
	// pyramid branches before any per-tile test.
	Extent() BBox
}

// BBoxCoverage is a coverage defined by a single rectangle — the common
// case for seed/cleanup by extent (spec.md §8 scenario 5).
type BBoxCoverage struct {
	BBox BBox
}

func (c BBoxCoverage) Extent() BBox { return c.BBox }

func (c BBoxCoverage) Intersection(bbox BBox) Intersection {
	if !c.BBox.intersects(bbox) {
		return None
	}
	if c.BBox.contains(bbox) {
		return Contains
	}
	return Intersects
}

// PolygonCoverage is a coverage defined by a simple (non-self-intersecting)
// ring of points, tested with ray casting. No computational-geometry
// library appears anywhere in the example pack this module was built from,
// so this is implemented directly on stdlib math — see DESIGN.md.
type PolygonCoverage struct {
	Ring   [][2]float64
	extent BBox
}

// NewPolygonCoverage computes and caches the ring's bounding box.
func NewPolygonCoverage(ring [][2]float64) *PolygonCoverage {
	ext := BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range ring {
		if p[0] < ext[0] {
			ext[0] = p[0]
		}
		if p[1] < ext[1] {
			ext[1] = p[1]
		}
		if p[0] > ext[2] {
			ext[2] = p[0]
		}
		if p[1] > ext[3] {
			ext[3] = p[1]
		}
	}
	return &PolygonCoverage{Ring: ring, extent: ext}
}

func (c *PolygonCoverage) Extent() BBox { return c.extent }

func (c *PolygonCoverage) containsPoint(x, y float64) bool {
	inside := false
	n := len(c.Ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := c.Ring[i][0], c.Ring[i][1]
		xj, yj := c.Ring[j][0], c.Ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Intersection tests bbox against the polygon using its four corners and
// bbox-of-ring pre-filtering. A bbox is classified Contains only when all
// four corners are inside the ring and the ring's own extent doesn't poke
// into the bbox (a cheap, slightly conservative approximation — it may
// classify a bbox as Intersects when a tighter exact test would say
// Contains, which only costs one extra, still-correct level of descent).
func (c *PolygonCoverage) Intersection(bbox BBox) Intersection {
	if !c.extent.intersects(bbox) {
		return None
	}
	corners := [4][2]float64{
		{bbox[0], bbox[1]}, {bbox[2], bbox[1]}, {bbox[2], bbox[3]}, {bbox[0], bbox[3]},
	}
	allIn := true
	anyIn := false
	for _, p := range corners {
		if c.containsPoint(p[0], p[1]) {
			anyIn = true
		} else {
			allIn = false
		}
	}
	if allIn && c.extent.contains(bbox) {
		return Contains
	}
	if anyIn || c.extent.intersects(bbox) {
		return Intersects
	}
	return None
}
