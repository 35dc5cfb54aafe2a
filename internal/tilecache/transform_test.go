package tilecache

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageTransformerNoopWhenBBoxMatches(t *testing.T) {
	tr := NewImageTransformer("EPSG:3857", "EPSG:3857")
	src := solidImage(256, 256, color.White)
	bbox := BBox{0, 0, 256, 256}

	out, err := tr.Transform(src, bbox, image.Point{X: 256, Y: 256}, bbox)
	require.NoError(t, err)
	assert.Equal(t, image.Image(src), out)
}

func TestImageTransformerSimpleCropSameSRS(t *testing.T) {
	tr := NewImageTransformer("EPSG:3857", "EPSG:3857")
	src := solidImage(256, 256, color.White)
	srcBBox := BBox{0, 0, 256, 256}
	dstBBox := BBox{64, 64, 192, 192}

	out, err := tr.Transform(src, srcBBox, image.Point{X: 128, Y: 128}, dstBBox)
	require.NoError(t, err)
	assert.Equal(t, 128, out.Bounds().Dx())
	assert.Equal(t, 128, out.Bounds().Dy())
}

func TestImageTransformerSimpleRescale(t *testing.T) {
	tr := NewImageTransformer("EPSG:3857", "EPSG:3857")
	src := solidImage(100, 100, color.RGBA{R: 255, A: 255})
	srcBBox := BBox{0, 0, 100, 100}
	dstBBox := BBox{0, 0, 100, 100}

	out, err := tr.Transform(src, srcBBox, image.Point{X: 50, Y: 50}, dstBBox)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestImageTransformerMeshReprojectsAcrossSRS(t *testing.T) {
	tr := NewImageTransformer("EPSG:4326", "EPSG:3857")
	src := solidImage(64, 64, color.RGBA{G: 255, A: 255})
	srcBBox := BBox{-10, -10, 10, 10}
	dstBBox := BBox{-1000000, -1000000, 1000000, 1000000}

	out, err := tr.Transform(src, srcBBox, image.Point{X: 64, Y: 64}, dstBBox)
	require.NoError(t, err)
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
}

func TestGriddifyDividesIntoStepsSquared(t *testing.T) {
	quads := griddify(image.Rect(0, 0, 100, 100), 4)
	assert.Len(t, quads, 16)
	for _, q := range quads {
		assert.False(t, q.Empty())
	}
}

func TestGriddifySingleStepReturnsWholeRect(t *testing.T) {
	rect := image.Rect(0, 0, 50, 30)
	quads := griddify(rect, 1)
	require.Len(t, quads, 1)
	assert.Equal(t, rect, quads[0])
}
