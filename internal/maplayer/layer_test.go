package maplayer

import (
	"context"
	"image"
	"testing"

	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGridAndManager(t *testing.T) (*tilecache.Grid, *tilecache.TileManager) {
	t.Helper()
	g, err := tilecache.NewGrid(tilecache.GridOptions{
		SRSCode:  "EPSG:3857",
		BBox:     tilecache.BBox{-20037508.34, -20037508.34, 20037508.34, 20037508.34},
		TileSize: [2]int{256, 256},
		ResType:  tilecache.ResGlobal,
		Levels:   10,
	})
	require.NoError(t, err)
	cache := tilecache.NewFileCache(t.TempDir(), "png")
	cache.LinkSingleColorImages = false
	source := &tilecache.DebugSource{TileSize: g.TileSize}
	mgr := tilecache.NewTileManager(zap.NewNop().Sugar(), g, tilecache.NewMetaGrid(g, [2]int{1, 1}, 0), cache, source, "png")
	t.Cleanup(mgr.Close)
	return g, mgr
}

func TestCacheMapLayerGetMapReturnsRequestedSize(t *testing.T) {
	g, mgr := testGridAndManager(t)
	layer := NewCacheMapLayer(zap.NewNop().Sugar(), g, mgr)

	img, err := layer.GetMap(context.Background(), MapQuery{
		BBox:    g.BBox,
		SRSCode: g.SRSCode,
		Size:    [2]int{256, 256},
		Format:  "png",
	})
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
}

func TestDirectMapLayerForwardsToSource(t *testing.T) {
	src := &tilecache.DebugSource{TileSize: [2]int{64, 64}}
	layer := &DirectMapLayer{Source: src}

	img, err := layer.GetMap(context.Background(), MapQuery{
		BBox:    tilecache.BBox{0, 0, 100, 100},
		SRSCode: "EPSG:3857",
		Size:    [2]int{64, 64},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

type fakeLayer struct {
	name   string
	called string
}

func (f *fakeLayer) GetMap(ctx context.Context, q MapQuery) (image.Image, error) {
	f.called = f.name
	return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
}

func TestResolutionConditionalDispatchesByThreshold(t *testing.T) {
	low := &fakeLayer{name: "low"}
	high := &fakeLayer{name: "high"}
	rc := &ResolutionConditional{Layer: low, HighResLayer: high, Threshold: 10}

	_, err := rc.GetMap(context.Background(), MapQuery{BBox: tilecache.BBox{0, 0, 1000, 1000}, Size: [2]int{100, 100}})
	require.NoError(t, err)
	assert.Equal(t, "low", low.called)

	low.called, high.called = "", ""
	_, err = rc.GetMap(context.Background(), MapQuery{BBox: tilecache.BBox{0, 0, 10, 10}, Size: [2]int{100, 100}})
	require.NoError(t, err)
	assert.Equal(t, "high", high.called)
}

func TestSRSConditionalDispatchesBySRS(t *testing.T) {
	byCode := &fakeLayer{name: "3857"}
	def := &fakeLayer{name: "default"}
	sc := &SRSConditional{BySRS: map[string]MapLayer{"EPSG:3857": byCode}, Default: def}

	_, err := sc.GetMap(context.Background(), MapQuery{SRSCode: "EPSG:3857"})
	require.NoError(t, err)
	assert.Equal(t, "3857", byCode.called)

	_, err = sc.GetMap(context.Background(), MapQuery{SRSCode: "EPSG:4326"})
	require.NoError(t, err)
	assert.Equal(t, "default", def.called)
}

func TestSRSConditionalNoMatchNoDefaultErrors(t *testing.T) {
	sc := &SRSConditional{BySRS: map[string]MapLayer{}}
	_, err := sc.GetMap(context.Background(), MapQuery{SRSCode: "EPSG:4326"})
	assert.Error(t, err)
}
