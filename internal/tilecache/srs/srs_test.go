package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEPSGRecognizesKnownCodes(t *testing.T) {
	proj, ok := ForEPSG("EPSG:4326")
	assert.True(t, ok)
	assert.IsType(t, identityProj{}, proj)

	proj, ok = ForEPSG("EPSG:3857")
	assert.True(t, ok)
	assert.IsType(t, webMercatorProj{}, proj)

	_, ok = ForEPSG("EPSG:2056")
	assert.False(t, ok)
}

func TestWebMercatorRoundTrip(t *testing.T) {
	proj := webMercatorProj{}
	lon, lat := 16.3725, 48.2083 // Vienna
	x, y := proj.FromWGS84(lon, lat)
	gotLon, gotLat := proj.ToWGS84(x, y)
	assert.InDelta(t, lon, gotLon, 1e-6)
	assert.InDelta(t, lat, gotLat, 1e-6)
}

func TestWebMercatorOriginIsZero(t *testing.T) {
	proj := webMercatorProj{}
	x, y := proj.FromWGS84(0, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func TestTransformPointIdentityToWebMercator(t *testing.T) {
	from, _ := ForEPSG("EPSG:4326")
	to, _ := ForEPSG("EPSG:3857")
	x, y := TransformPoint(from, to, 0, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func TestTransformBBoxEnclosesTransformedCorners(t *testing.T) {
	from, _ := ForEPSG("EPSG:4326")
	to, _ := ForEPSG("EPSG:3857")
	b := BBox{-10, -10, 10, 10}
	out := TransformBBox(from, to, b)

	assert.Less(t, out[0], 0.0)
	assert.Less(t, out[1], 0.0)
	assert.Greater(t, out[2], 0.0)
	assert.Greater(t, out[3], 0.0)
}

func TestTransformBBoxIdentitySRSIsUnchanged(t *testing.T) {
	same, _ := ForEPSG("EPSG:4326")
	b := BBox{1, 2, 3, 4}
	out := TransformBBox(same, same, b)
	assert.InDelta(t, b[0], out[0], 1e-9)
	assert.InDelta(t, b[1], out[1], 1e-9)
	assert.InDelta(t, b[2], out[2], 1e-9)
	assert.InDelta(t, b[3], out[3], 1e-9)
}
