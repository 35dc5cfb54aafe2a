package tilecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTMSClientGetTileSubstitutesCoordinate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	c := NewTMSClient(srv.URL + "/{z}/{x}/{y}.png")
	src, err := c.GetTile(context.Background(), TileCoord{X: 3, Y: 4, Z: 5})
	require.NoError(t, err)

	assert.Equal(t, "/5/3/4.png", gotPath)
	buf, err := src.AsBuffer()
	require.NoError(t, err)
	assert.Equal(t, "tile-bytes", string(buf))
}

func TestTMSClientGetTileNon200IsTileSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewTMSClient(srv.URL + "/{z}/{x}/{y}.png")
	_, err := c.GetTile(context.Background(), TileCoord{X: 0, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrTileSource)
}
