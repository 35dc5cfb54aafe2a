package tilecache

import (
	"fmt"
	"image"
	"image/draw"
)

// TileSplitter crops individual tiles out of a decoded metatile image.
//
// Grounded on mapproxy.core.image.TileSplitter.
type TileSplitter struct {
	meta image.Image
}

// NewTileSplitter builds a splitter over a decoded metatile image,
// promoting it to NRGBA when it is paletted or does not support SubImage
// (the way mapproxy converts palette-mode images before splitting png/gif
// metatiles).
func NewTileSplitter(meta image.Image) *TileSplitter {
	_, paletted := meta.(*image.Paletted)
	if _, ok := meta.(subImager); !ok || paletted {
		promoted := image.NewNRGBA(meta.Bounds())
		draw.Draw(promoted, promoted.Bounds(), meta, meta.Bounds().Min, draw.Src)
		meta = promoted
	}
	return &TileSplitter{meta: meta}
}

// GetTile crops the tile at crop (in tile units from the metatile's
// top-left) out of the metatile image, with tileSize in pixels and
// metaBuffer the pixel border configured on the owning MetaGrid.
//
// Grounded on mapproxy.core.image.TileSplitter.get_tile.
func (s *TileSplitter) GetTile(crop MetaTileCrop, tileSize [2]int, metaBuffer int) (*ImageSource, error) {
	si, ok := s.meta.(subImager)
	if !ok {
		return nil, fmt.Errorf("tilecache: metatile image does not support cropping")
	}
	x0 := metaBuffer + crop.Col*tileSize[0]
	y0 := metaBuffer + crop.Row*tileSize[1]
	rect := image.Rect(x0, y0, x0+tileSize[0], y0+tileSize[1]).Add(s.meta.Bounds().Min)
	if !rect.In(s.meta.Bounds()) {
		return nil, fmt.Errorf("tilecache: crop %v out of metatile bounds %v", rect, s.meta.Bounds())
	}
	return NewImageSource(si.SubImage(rect)), nil
}

// TileMerger stitches an ordered set of same-size tile images back into a
// single image; CacheMapLayer uses it to assemble the cached tiles
// covering a request before cropping/scaling to the requested bbox.
//
// Grounded on mapproxy.core.image.TileMerger.
type TileMerger struct {
	tileSize [2]int
	metaSize [2]int
}

// NewTileMerger builds a merger for a metaSize[cols,rows] grid of
// tileSize-pixel tiles.
func NewTileMerger(tileSize, metaSize [2]int) *TileMerger {
	return &TileMerger{tileSize: tileSize, metaSize: metaSize}
}

// Merge stitches tiles (row-major, top row first, matching MetaGrid.Tiles'
// iteration order) into one image. A nil entry leaves its slot untouched
// (left transparent/whatever the destination's zero value is).
//
// Grounded on mapproxy.core.image.TileMerger.merge / _tile_offset.
func (m *TileMerger) Merge(tiles []*ImageSource) (image.Image, error) {
	want := m.metaSize[0] * m.metaSize[1]
	if len(tiles) != want {
		return nil, fmt.Errorf("tilecache: expected %d tiles, got %d", want, len(tiles))
	}
	if want == 1 {
		if tiles[0] == nil {
			return image.NewNRGBA(image.Rect(0, 0, m.tileSize[0], m.tileSize[1])), nil
		}
		return tiles[0].AsImage()
	}

	w := m.metaSize[0] * m.tileSize[0]
	h := m.metaSize[1] * m.tileSize[1]
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, t := range tiles {
		if t == nil {
			continue
		}
		img, err := t.AsImage()
		if err != nil {
			return nil, err
		}
		row := i / m.metaSize[0]
		col := i % m.metaSize[0]
		off := image.Pt(col*m.tileSize[0], row*m.tileSize[1])
		draw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(m.tileSize[0], m.tileSize[1]))}, img, img.Bounds().Min, draw.Src)
	}
	return dst, nil
}
