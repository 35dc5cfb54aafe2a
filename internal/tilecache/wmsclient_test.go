package tilecache

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatBBoxDefaultAxisOrder(t *testing.T) {
	b := BBox{1, 2, 3, 4}
	assert.Equal(t, "1.000000,2.000000,3.000000,4.000000", formatBBox(b, "1.1.1", true))
}

func TestFormatBBoxSwapsAxisForWMS130Geographic(t *testing.T) {
	b := BBox{1, 2, 3, 4}
	assert.Equal(t, "2.000000,1.000000,4.000000,3.000000", formatBBox(b, "1.3.0", true))
}

func TestFormatBBoxNoSwapForWMS130Projected(t *testing.T) {
	b := BBox{1, 2, 3, 4}
	assert.Equal(t, "1.000000,2.000000,3.000000,4.000000", formatBBox(b, "1.3.0", false))
}

func TestWMSClientGetMapBuildsRequestAndDecodesResponse(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		var buf bytes.Buffer
		require.NoError(t, NewImageSource(solidImage(2, 2, color.White)).Encode(&buf, "png"))
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := NewWMSClient(zap.NewNop().Sugar(), srv.URL)
	src, err := c.GetMap(context.Background(), []string{"base"}, BBox{0, 0, 10, 10}, "EPSG:3857", [2]int{2, 2}, "png", false, true)
	require.NoError(t, err)

	img, err := src.AsImage()
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	assert.Contains(t, gotQuery, "REQUEST=GetMap")
	assert.Contains(t, gotQuery, "LAYERS=base")
	assert.Contains(t, gotQuery, "TRANSPARENT=true")
}

func TestWMSClientGetMapNon200IsTileSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewWMSClient(zap.NewNop().Sugar(), srv.URL)
	_, err := c.GetMap(context.Background(), []string{"base"}, BBox{0, 0, 10, 10}, "EPSG:3857", [2]int{2, 2}, "png", false, false)
	assert.ErrorIs(t, err, ErrTileSource)
}

func TestWMSClientGetMapRejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c := NewWMSClient(zap.NewNop().Sugar(), srv.URL)
	_, err := c.GetMap(context.Background(), []string{"base"}, BBox{0, 0, 10, 10}, "EPSG:3857", [2]int{2, 2}, "png", false, false)
	assert.ErrorIs(t, err, ErrTileSource)
}

func TestWMSClientGetFeatureInfoUsesIJForWMS130(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("feature info"))
	}))
	defer srv.Close()

	c := NewWMSClient(zap.NewNop().Sugar(), srv.URL)
	c.Version = "1.3.0"
	out, err := c.GetFeatureInfo(context.Background(), []string{"base"}, BBox{0, 0, 10, 10}, "EPSG:4326", [2]int{256, 256}, 5, 6, "text/plain", true)
	require.NoError(t, err)
	assert.Equal(t, "feature info", string(out))
	assert.Contains(t, gotQuery, "I=5")
	assert.Contains(t, gotQuery, "J=6")
}
