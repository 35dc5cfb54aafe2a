package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/geocache/tileserver/internal/maplayer"
	"github.com/geocache/tileserver/internal/tilecache"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TileServer is the thin HTTP surface over a tile cache/rendering core: an
// XYZ tile endpoint, a WMS GetMap passthrough, and a prometheus /metrics
// endpoint. It is the module's only HTTP server — protocol handling (WMS/TMS/KML request parsing, XML capabilities
// templating) is explicitly out of scope, so this exists only to give the
// core an entry point a real client can exercise end to end.
//
// Grounded on Server.NewServer's echo.Echo/prometheus wiring, with routes
// modeled on the teacher's handleMapCachedOws (cache-check, fetch-if-
// missing, stream response) generalized onto maplayer.MapLayer/Grid.
type TileServer struct {
	echo *echo.Echo
	log  *zap.SugaredLogger

	grid   *tilecache.Grid
	layers map[string]maplayer.MapLayer
}

// NewTileServer builds a TileServer over a shared grid and a set of named
// layers (the key is the :layer path segment).
func NewTileServer(log *zap.SugaredLogger, grid *tilecache.Grid, layers map[string]maplayer.MapLayer) *TileServer {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = tileErrorHandler(log)

	p := prometheus.NewPrometheus("tiles", nil)
	p.Use(e)

	ts := &TileServer{echo: e, log: log, grid: grid, layers: layers}
	// echo path params run up to the next '/', so the last segment is one
	// param holding "<y>.<ext>"; handleXYZ splits it.
	e.GET("/tiles/:layer/:z/:x/:y", ts.handleXYZ)
	e.GET("/wms", ts.handleWMSGetMap)
	return ts
}

func tileErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code >= 500 {
			log.Errorw("tile request failed", "path", c.Request().URL.Path, "error", err)
		}
		c.NoContent(code)
	}
}

// ListenAndServe starts the tile HTTP surface on addr, blocking until the
// server stops or the context is cancelled.
func (ts *TileServer) ListenAndServe(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ts.echo.Shutdown(shutdownCtx)
	}()
	err := ts.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handleXYZ serves one XYZ/slippy-map tile: GET /tiles/:layer/:z/:x/:y.:ext.
// The Y coordinate is flipped from the XYZ "origin at top-left" convention
// to the grid's "origin at bottom-left" tile coordinate before lookup.
func (ts *TileServer) handleXYZ(c echo.Context) error {
	name := c.Param("layer")
	layer, ok := ts.layers[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown layer")
	}
	z, err := strconv.Atoi(c.Param("z"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid z")
	}
	x, err := strconv.Atoi(c.Param("x"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid x")
	}
	yPart, ext, found := strings.Cut(c.Param("y"), ".")
	if !found {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid y")
	}
	yXYZ, err := strconv.Atoi(yPart)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid y")
	}

	coord, ok := ts.grid.LimitTile(tilecache.TileCoord{X: x, Y: yXYZ, Z: z})
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such level")
	}
	coord, err = ts.grid.FlipTileCoord(coord)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	bbox, err := ts.grid.TileBBox(coord)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	img, err := layer.GetMap(c.Request().Context(), maplayer.MapQuery{
		BBox:        bbox,
		SRSCode:     ts.grid.SRSCode,
		Size:        ts.grid.TileSize,
		Format:      ext,
		Transparent: ext == "png",
	})
	if err != nil {
		return mapLayerError(err)
	}
	return streamImage(c, img, ext)
}

// handleWMSGetMap serves GetMap requests only: GET /wms?LAYERS=...&BBOX=...
// &WIDTH=...&HEIGHT=...&SRS=...&FORMAT=.... Capabilities/DescribeLayer/
// feature-info and XML exception documents are out of scope per spec.md §1.
func (ts *TileServer) handleWMSGetMap(c echo.Context) error {
	name := c.QueryParam("LAYERS")
	layer, ok := ts.layers[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown layer")
	}
	bbox, err := parseQueryBBox(c.QueryParam("BBOX"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	width, err := strconv.Atoi(c.QueryParam("WIDTH"))
	if err != nil || width <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid WIDTH")
	}
	height, err := strconv.Atoi(c.QueryParam("HEIGHT"))
	if err != nil || height <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid HEIGHT")
	}
	srs := c.QueryParam("SRS")
	if srs == "" {
		srs = c.QueryParam("CRS")
	}
	format := c.QueryParam("FORMAT")
	ext := formatExtension(format)

	img, err := layer.GetMap(c.Request().Context(), maplayer.MapQuery{
		BBox:        bbox,
		SRSCode:     srs,
		Size:        [2]int{width, height},
		Format:      ext,
		Transparent: c.QueryParam("TRANSPARENT") == "true",
	})
	if err != nil {
		return mapLayerError(err)
	}
	return streamImage(c, img, ext)
}

func mapLayerError(err error) error {
	switch err {
	case tilecache.ErrLockTimeout:
		return echo.NewHTTPError(http.StatusInternalServerError, "cache lock timeout").SetInternal(err)
	case tilecache.ErrOutOfBounds, tilecache.ErrNoSuchLevel:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "rendering tile").SetInternal(err)
	}
}

func streamImage(c echo.Context, img image.Image, ext string) error {
	format, err := imagingFormatName(ext)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "encoding image").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "image/"+ext, buf.Bytes())
}

func imagingFormatName(ext string) (imaging.Format, error) {
	switch ext {
	case "png":
		return imaging.PNG, nil
	case "jpeg", "jpg":
		return imaging.JPEG, nil
	case "gif":
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("unsupported image format %q", ext)
	}
}

func parseQueryBBox(s string) (tilecache.BBox, error) {
	var b tilecache.BBox
	n, err := fmt.Sscanf(s, "%g,%g,%g,%g", &b[0], &b[1], &b[2], &b[3])
	if err != nil || n != 4 {
		return tilecache.BBox{}, fmt.Errorf("invalid BBOX %q", s)
	}
	return b, nil
}

func formatExtension(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
