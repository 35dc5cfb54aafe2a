package tilecache

import (
	"context"
	"image"
	"image/color"
)

// Source is the contract TileManager uses to fetch image data it could not
// find in the cache, either one metatile at a time or one tile at a time.
//
// Grounded on mapproxy.core.cache.Source / WMSSource, generalized into a
// single Go interface rather than a class hierarchy.
type Source interface {
	// SupportsMetaTiles reports whether GetMap can be asked for a bbox
	// covering more than one tile at once.
	SupportsMetaTiles() bool
	// Transparent reports whether the source's images can carry an alpha
	// channel (used by LayerMerger to decide whether a background fill is
	// needed).
	Transparent() bool
	// GetMap fetches image data covering bbox (in srsCode) at size pixels.
	GetMap(ctx context.Context, bbox BBox, srsCode string, size [2]int) (*ImageSource, error)
}

// WMSSource adapts a WMSClient into a Source. Every request is sent
// upstream in the caller's SRS and bbox, whatever NativeSRS says; no
// reprojection is done here or in TileManager.
type WMSSource struct {
	Client       *WMSClient
	Layers       []string
	Format       string
	NativeSRS    string
	IsGeographic bool
	transparent  bool
	metaTiles    bool
}

// NewWMSSource builds a source over client for the given layers/format,
// supporting metatile requests by default (the historical MapProxy
// default for WMS sources that declare no meta_tiles=false override).
func NewWMSSource(client *WMSClient, layers []string, format, nativeSRS string, geographic, transparent bool) *WMSSource {
	return &WMSSource{
		Client:       client,
		Layers:       layers,
		Format:       format,
		NativeSRS:    nativeSRS,
		IsGeographic: geographic,
		transparent:  transparent,
		metaTiles:    true,
	}
}

func (s *WMSSource) SupportsMetaTiles() bool { return s.metaTiles }
func (s *WMSSource) Transparent() bool       { return s.transparent }

func (s *WMSSource) GetMap(ctx context.Context, bbox BBox, srsCode string, size [2]int) (*ImageSource, error) {
	if srsCode == s.NativeSRS || s.NativeSRS == "" {
		return s.Client.GetMap(ctx, s.Layers, bbox, srsCode, size, s.Format, s.IsGeographic, s.transparent)
	}
	// srsCode differs from NativeSRS: the request still goes upstream in
	// srsCode with the caller's bbox, unconverted.
	return s.Client.GetMap(ctx, s.Layers, bbox, srsCode, size, s.Format, s.IsGeographic, s.transparent)
}

// TiledSource adapts a TMSClient into a Source for services that are
// already tiled (no metatile assembly possible — each request is exactly
// one tile).
type TiledSource struct {
	Client      *TMSClient
	grid        *Grid
	transparent bool
}

// NewTiledSource builds a source over a grid-aligned TMS/XYZ client.
func NewTiledSource(client *TMSClient, grid *Grid, transparent bool) *TiledSource {
	return &TiledSource{Client: client, grid: grid, transparent: transparent}
}

func (s *TiledSource) SupportsMetaTiles() bool { return false }
func (s *TiledSource) Transparent() bool       { return s.transparent }

func (s *TiledSource) GetMap(ctx context.Context, bbox BBox, srsCode string, size [2]int) (*ImageSource, error) {
	level := s.grid.ClosestLevel(bbox.Width() / float64(size[0]))
	coord, err := s.grid.Tile((bbox[0]+bbox[2])/2, (bbox[1]+bbox[3])/2, level)
	if err != nil {
		return nil, err
	}
	return s.Client.GetTile(ctx, coord)
}

// DebugSource fills the whole requested image with one opaque color whose
// red and green channels are derived from the bbox's lower-left corner; it
// draws no text or coordinate label. It is useful for exercising the TileManager/MapLayer pipeline without a real upstream
// service.
type DebugSource struct {
	TileSize [2]int
}

func (s *DebugSource) SupportsMetaTiles() bool { return true }
func (s *DebugSource) Transparent() bool       { return false }

func (s *DebugSource) GetMap(ctx context.Context, bbox BBox, srsCode string, size [2]int) (*ImageSource, error) {
	img := image.NewRGBA(image.Rect(0, 0, size[0], size[1]))
	fill := color.RGBA{R: uint8(int(bbox[0]) % 255), G: uint8(int(bbox[1]) % 255), B: 128, A: 255}
	for y := 0; y < size[1]; y++ {
		for x := 0; x < size[0]; x++ {
			img.Set(x, y, fill)
		}
	}
	return NewImageSource(img), nil
}
