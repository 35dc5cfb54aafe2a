// Package srs implements coordinate transforms for the spatial reference
// systems the tile cache core needs: geographic WGS84 (EPSG:4326) and
// spherical Web Mercator (EPSG:3857/900913), plus an identity fallback for
// any SRS declared equal to the grid's own.
//
// No general CRS/geodesy library is available anywhere in the retrieval
// pack this module was built from (checked every go.mod for a proj4
// binding, s2, orb, or similar geometry package); the one piece of
// reference code in that pack that performs reprojection
// (geotiff2pmtiles/internal/coord) also hand-rolls closed-form Web
// Mercator math behind a small interface, which this package follows.
package srs

import "math"

// earthRadius is the sphere radius used by the spherical Web Mercator
// projection (EPSG:3857), matching the historical "900913" approximation.
const earthRadius = 6378137.0

// SRS identifies a spatial reference system by EPSG code.
type SRS struct {
	Code       string // e.g. "EPSG:3857"
	Geographic bool
}

// Proj converts between this SRS and WGS84 lon/lat.
type Proj interface {
	ToWGS84(x, y float64) (lon, lat float64)
	FromWGS84(lon, lat float64) (x, y float64)
}

type identityProj struct{}

func (identityProj) ToWGS84(x, y float64) (float64, float64)   { return x, y }
func (identityProj) FromWGS84(lon, lat float64) (float64, float64) { return lon, lat }

type webMercatorProj struct{}

func (webMercatorProj) ToWGS84(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func (webMercatorProj) FromWGS84(lon, lat float64) (x, y float64) {
	x = lon * math.Pi / 180 * earthRadius
	y = math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * earthRadius
	return x, y
}

// ForEPSG returns the Proj implementation for a known EPSG code, or the
// identity projection (with ok=false) for an unrecognized one — callers
// that need to fail on unknown SRS should check ok.
func ForEPSG(code string) (Proj, bool) {
	switch code {
	case "EPSG:4326", "EPSG:4258", "CRS:84":
		return identityProj{}, true
	case "EPSG:3857", "EPSG:900913", "EPSG:3785":
		return webMercatorProj{}, true
	default:
		return identityProj{}, false
	}
}

// TransformPoint reprojects (x,y) from srs to dst.
func TransformPoint(from, to Proj, x, y float64) (float64, float64) {
	lon, lat := from.ToWGS84(x, y)
	return to.FromWGS84(lon, lat)
}

// BBox is a minimal [minx,miny,maxx,maxy] type mirroring tilecache.BBox,
// kept separate to avoid an import cycle between tilecache and srs.
type BBox [4]float64

// TransformBBox reprojects a bbox by densifying its edges into a small
// grid of sample points and taking the enclosing bbox of their transformed
// positions — a standard approach for non-linear reprojections where the
// four corners alone would underestimate the transformed extent.
func TransformBBox(from, to Proj, b BBox) BBox {
	const steps = 16
	minx, miny := math.Inf(1), math.Inf(1)
	maxx, maxy := math.Inf(-1), math.Inf(-1)
	update := func(x, y float64) {
		tx, ty := TransformPoint(from, to, x, y)
		if tx < minx {
			minx = tx
		}
		if tx > maxx {
			maxx = tx
		}
		if ty < miny {
			miny = ty
		}
		if ty > maxy {
			maxy = ty
		}
	}
	w := b[2] - b[0]
	h := b[3] - b[1]
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		update(b[0]+t*w, b[1]) // bottom edge
		update(b[0]+t*w, b[3]) // top edge
		update(b[0], b[1]+t*h) // left edge
		update(b[2], b[1]+t*h) // right edge
	}
	return BBox{minx, miny, maxx, maxy}
}
