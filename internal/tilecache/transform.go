package tilecache

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/geocache/tileserver/internal/tilecache/srs"
)

// ImageTransformer reprojects a decoded source image from one SRS/bbox
// into a destination image of a given size/bbox/SRS, using a fast crop+
// scale path when no real reprojection is needed and a mesh-warp otherwise.
//
// Grounded on mapproxy.core.image.ImageTransformer.
type ImageTransformer struct {
	SrcSRS, DstSRS string
	MeshDiv        int
}

// NewImageTransformer builds a transformer with mapproxy's historical
// default mesh subdivision of 8x8 quads.
func NewImageTransformer(srcSRS, dstSRS string) *ImageTransformer {
	return &ImageTransformer{SrcSRS: srcSRS, DstSRS: dstSRS, MeshDiv: 8}
}

// noTransformationNeeded reports whether srcBBox/dstBBox are the same SRS
// and close enough (within a tenth of a pixel) that a transform would be a
// no-op.
//
// Grounded on mapproxy.core.image.ImageTransformer._no_transformation_needed.
func (t *ImageTransformer) noTransformationNeeded(srcBBox, dstBBox BBox, dstSize image.Point) bool {
	if t.SrcSRS != t.DstSRS {
		return false
	}
	xres := (dstBBox[2] - dstBBox[0]) / float64(dstSize.X)
	tol := xres / 10
	for i := range srcBBox {
		if math.Abs(srcBBox[i]-dstBBox[i]) > tol {
			return false
		}
	}
	return true
}

// Transform reprojects src (covering srcBBox) into an image of dstSize
// covering dstBBox in t.DstSRS.
func (t *ImageTransformer) Transform(src image.Image, srcBBox BBox, dstSize image.Point, dstBBox BBox) (image.Image, error) {
	if src.Bounds().Size() == dstSize && t.noTransformationNeeded(srcBBox, dstBBox, dstSize) {
		return src, nil
	}
	if t.SrcSRS == t.DstSRS {
		return t.transformSimple(src, srcBBox, dstSize, dstBBox)
	}
	return t.transformMesh(src, srcBBox, dstSize, dstBBox)
}

// transformSimple handles same-SRS crop/scale requests (the request bbox
// is a sub-window of, or a simple rescale of, the source bbox).
//
// Grounded on mapproxy.core.image.ImageTransformer._transform_simple.
func (t *ImageTransformer) transformSimple(src image.Image, srcBBox BBox, dstSize image.Point, dstBBox BBox) (image.Image, error) {
	sb := src.Bounds()
	srcResX := srcBBox.Width() / float64(sb.Dx())
	srcResY := srcBBox.Height() / float64(sb.Dy())

	px0 := int(math.Round((dstBBox[0] - srcBBox[0]) / srcResX))
	py0 := int(math.Round((srcBBox[3] - dstBBox[3]) / srcResY))
	px1 := int(math.Round((dstBBox[2] - srcBBox[0]) / srcResX))
	py1 := int(math.Round((srcBBox[3] - dstBBox[1]) / srcResY))

	rect := image.Rect(px0, py0, px1, py1).Add(sb.Min)
	cropped := imaging.Crop(src, rect)
	if cropped.Bounds().Dx() == dstSize.X && cropped.Bounds().Dy() == dstSize.Y {
		return cropped, nil
	}
	return imaging.Resize(cropped, dstSize.X, dstSize.Y, imaging.Linear), nil
}

// transformMesh performs a full mesh-warp reprojection: the destination
// image is divided into an N×N grid of quads (reduced automatically if any
// quad would be smaller than ~10px), each quad's top-left and bottom-right
// corners are mapped dst-pixel -> dst-world -> src-world -> src-pixel, and
// each quad is filled by cropping the axis-aligned source rectangle between
// those two points and resizing it to the quad. The other two corners are
// not mapped, so within a quad the warp is a plain scale, not an affine
// transform.
//
// Grounded on mapproxy.core.image.ImageTransformer._transform / griddify.
func (t *ImageTransformer) transformMesh(src image.Image, srcBBox BBox, dstSize image.Point, dstBBox BBox) (image.Image, error) {
	meshDiv := t.MeshDiv
	if meshDiv < 1 {
		meshDiv = 1
	}
	for meshDiv > 1 && (dstSize.X/meshDiv < 10 || dstSize.Y/meshDiv < 10) {
		meshDiv--
	}

	srcProj, _ := srs.ForEPSG(t.SrcSRS)
	dstProj, _ := srs.ForEPSG(t.DstSRS)

	sb := src.Bounds()
	srcResX := srcBBox.Width() / float64(sb.Dx())
	srcResY := srcBBox.Height() / float64(sb.Dy())
	dstResX := dstBBox.Width() / float64(dstSize.X)
	dstResY := dstBBox.Height() / float64(dstSize.Y)

	dst := image.NewNRGBA(image.Rectangle{Max: dstSize})

	quads := griddify(image.Rectangle{Max: dstSize}, meshDiv)
	for _, q := range quads {
		// destination pixel -> destination world coordinate (top-left image
		// origin vs bottom-left world origin).
		toWorld := func(px, py int) (float64, float64) {
			wx := dstBBox[0] + float64(px)*dstResX
			wy := dstBBox[3] - float64(py)*dstResY
			return wx, wy
		}
		wx0, wy0 := toWorld(q.Min.X, q.Min.Y)
		wx1, wy1 := toWorld(q.Max.X, q.Max.Y)

		sx0, sy0 := srs.TransformPoint(dstProj, srcProj, wx0, wy0)
		sx1, sy1 := srs.TransformPoint(dstProj, srcProj, wx1, wy1)

		spx0 := int(math.Round((sx0 - srcBBox[0]) / srcResX))
		spy0 := int(math.Round((srcBBox[3] - sy0) / srcResY))
		spx1 := int(math.Round((sx1 - srcBBox[0]) / srcResX))
		spy1 := int(math.Round((srcBBox[3] - sy1) / srcResY))

		srect := image.Rect(spx0, spy1, spx1, spy0).Add(sb.Min).Intersect(sb)
		if srect.Empty() {
			continue
		}
		patch := imaging.Crop(src, srect)
		if patch.Bounds().Dx() != q.Dx() || patch.Bounds().Dy() != q.Dy() {
			patch = imaging.Resize(patch, q.Dx(), q.Dy(), imaging.Linear)
		}
		draw.Draw(dst, q, patch, image.Point{}, draw.Src)
	}
	return dst, nil
}

// griddify divides rect into steps x steps sub-rectangles.
//
// Grounded on mapproxy.core.image.griddify.
func griddify(rect image.Rectangle, steps int) []image.Rectangle {
	var quads []image.Rectangle
	w := rect.Dx()
	h := rect.Dy()
	for row := 0; row < steps; row++ {
		y0 := rect.Min.Y + row*h/steps
		y1 := rect.Min.Y + (row+1)*h/steps
		for col := 0; col < steps; col++ {
			x0 := rect.Min.X + col*w/steps
			x1 := rect.Min.X + (col+1)*w/steps
			quads = append(quads, image.Rect(x0, y0, x1, y1))
		}
	}
	return quads
}
