package tilecache

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TMSClient fetches individually-tiled sources (TMS/XYZ) where each tile is
// already at its final z/x/y, no metatile assembly needed.
type TMSClient struct {
	URLTemplate string // e.g. "https://tiles.example.com/{z}/{x}/{y}.png"
	Client      *http.Client
}

// NewTMSClient builds a client using the same default timeout as WMSClient.
func NewTMSClient(urlTemplate string) *TMSClient {
	return &TMSClient{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: 60 * time.Second},
	}
}

// GetTile fetches a single tile by substituting {z}/{x}/{y} in the URL
// template.
func (c *TMSClient) GetTile(ctx context.Context, coord TileCoord) (*ImageSource, error) {
	u := strings.NewReplacer(
		"{z}", strconv.Itoa(coord.Z),
		"{x}", strconv.Itoa(coord.X),
		"{y}", strconv.Itoa(coord.Y),
	).Replace(c.URLTemplate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileSource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d for %s", ErrTileSource, resp.StatusCode, u)
	}
	buf := make([]byte, 0, 32*1024)
	chunk := make([]byte, 16*1024)
	for {
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
