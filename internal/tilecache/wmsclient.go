package tilecache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WMSClient issues GetMap/GetFeatureInfo requests against an upstream WMS
// service.
//
// Grounded on the teacher's internal/mapcache.Layer.GetMetaTileURL (query
// param construction) and internal/mapcache/service.go's GetTileFile
// (http.Client usage, status handling); the WMS 1.3.0 axis order behavior
// follows mapproxy.core.srs conventions referenced from cache.py.
type WMSClient struct {
	BaseURL string
	Version string // "1.1.1" or "1.3.0"
	Client  *http.Client
	log     *zap.SugaredLogger
}

// NewWMSClient builds a client with MapProxy's historical default 60s
// upstream request timeout.
func NewWMSClient(log *zap.SugaredLogger, baseURL string) *WMSClient {
	return &WMSClient{
		BaseURL: baseURL,
		Version: "1.1.1",
		Client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// axisSwapped reports whether WMS 1.3.0 + a geographic CRS requires
// lat,lon (y,x) bbox axis order instead of the 1.1.1 lon,lat convention.
func axisSwapped(version string, geographic bool) bool {
	return version == "1.3.0" && geographic
}

func formatBBox(b BBox, version string, geographic bool) string {
	if axisSwapped(version, geographic) {
		return fmt.Sprintf("%f,%f,%f,%f", b[1], b[0], b[3], b[2])
	}
	return fmt.Sprintf("%f,%f,%f,%f", b[0], b[1], b[2], b[3])
}

// GetMap fetches an image covering bbox at size pixels for the given
// layers/srs/format. The returned ImageSource wraps the raw response body;
// decoding is deferred until AsImage is called.
//
// Grounded on internal/mapcache/mapcache.go Layer.GetMetaTileURL.
func (c *WMSClient) GetMap(ctx context.Context, layers []string, bbox BBox, srsCode string, size [2]int, format string, geographic, transparent bool) (*ImageSource, error) {
	crsParam := "SRS"
	if c.Version == "1.3.0" {
		crsParam = "CRS"
	}
	v := url.Values{}
	v.Set("SERVICE", "WMS")
	v.Set("VERSION", c.Version)
	v.Set("REQUEST", "GetMap")
	v.Set("LAYERS", strings.Join(layers, ","))
	v.Set(crsParam, srsCode)
	v.Set("BBOX", formatBBox(bbox, c.Version, geographic))
	v.Set("WIDTH", strconv.Itoa(size[0]))
	v.Set("HEIGHT", strconv.Itoa(size[1]))
	v.Set("FORMAT", "image/"+format)
	if transparent {
		v.Set("TRANSPARENT", "true")
	}

	reqURL := c.BaseURL + "?" + v.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warnw("wms GetMap non-200 response", "status", resp.StatusCode, "url", reqURL)
		return nil, fmt.Errorf("%w: upstream status %d", ErrTileSource, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: unexpected content-type %q", ErrTileSource, ct)
	}
	buf := make([]byte, 0, 64*1024)
	for {
		chunk := make([]byte, 32*1024)
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return NewImageSourceFromBuffer(buf), nil
}

// GetFeatureInfo issues a WMS GetFeatureInfo request and returns the raw
// response body (text/plain, text/html, or application/vnd.ogc.gml
// depending on the service).
func (c *WMSClient) GetFeatureInfo(ctx context.Context, layers []string, bbox BBox, srsCode string, size [2]int, x, y int, infoFormat string, geographic bool) ([]byte, error) {
	crsParam := "SRS"
	if c.Version == "1.3.0" {
		crsParam = "CRS"
	}
	v := url.Values{}
	v.Set("SERVICE", "WMS")
	v.Set("VERSION", c.Version)
	v.Set("REQUEST", "GetFeatureInfo")
	v.Set("LAYERS", strings.Join(layers, ","))
	v.Set("QUERY_LAYERS", strings.Join(layers, ","))
	v.Set(crsParam, srsCode)
	v.Set("BBOX", formatBBox(bbox, c.Version, geographic))
	v.Set("WIDTH", strconv.Itoa(size[0]))
	v.Set("HEIGHT", strconv.Itoa(size[1]))
	if c.Version == "1.3.0" {
		v.Set("I", strconv.Itoa(x))
		v.Set("J", strconv.Itoa(y))
	} else {
		v.Set("X", strconv.Itoa(x))
		v.Set("Y", strconv.Itoa(y))
	}
	v.Set("INFO_FORMAT", infoFormat)

	reqURL := c.BaseURL + "?" + v.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", ErrTileSource, resp.StatusCode)
	}
	out := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return out, nil
}
