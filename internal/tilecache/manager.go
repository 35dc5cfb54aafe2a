package tilecache

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TileManager coordinates a Grid, a TileCache and a Source to answer
// "give me these tiles" requests, building whatever isn't cached yet.
//
// Exactly one build runs per metatile at a time across this process
// (singleflight) and across processes (FileLock on the metatile's main
// tile) — see DESIGN.md's Open Question decision on cache-lock semantics.
//
// Grounded on mapproxy.core.cache.TileManager.
type TileManager struct {
	Grid     *Grid
	MetaGrid *MetaGrid // nil disables metatile batching
	Cache    TileCache
	Source   Source
	Format   string

	MaxTiles int // 0 disables the limit

	log    *zap.SugaredLogger
	sf     singleflight.Group
	misses *ttlcache.Cache[string, bool]
}

// NewTileManager builds a manager. If metaGrid is nil and source supports
// metatiles anyway, tiles are still built one at a time (no batching).
func NewTileManager(log *zap.SugaredLogger, grid *Grid, metaGrid *MetaGrid, cache TileCache, source Source, format string) *TileManager {
	m := &TileManager{
		Grid:     grid,
		MetaGrid: metaGrid,
		Cache:    cache,
		Source:   source,
		Format:   format,
		log:      log,
		misses:   ttlcache.New(ttlcache.WithTTL[string, bool](2 * time.Second)),
	}
	go m.misses.Start()
	return m
}

func metatileKey(c TileCoord) string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// IsCached reports whether a tile is present in the cache (stale or not).
func (m *TileManager) IsCached(coord TileCoord) bool {
	ok, err := m.Cache.IsCached(coord)
	return err == nil && ok
}

// IsStale reports whether a cached tile's mtime is older than maxAge. An
// uncached tile is never "stale" — it is simply missing.
//
// Grounded on mapproxy.core.cache.TileManager.expire_timestamp handling in
// is_cached/is_stale call sites.
func (m *TileManager) IsStale(coord TileCoord, maxAge time.Duration) bool {
	ts, err := m.Cache.TimestampCreated(coord)
	if err != nil {
		return false
	}
	return time.Since(ts) > maxAge
}

// LoadTileCoords resolves every requested coordinate to a Tile, building
// whatever is missing. Coordinates are grouped by the metatile that would
// cover them so a single upstream fetch serves every tile in that group.
//
// Grounded on mapproxy.core.cache.TileManager.load_tile_coords.
func (m *TileManager) LoadTileCoords(ctx context.Context, coords []TileCoord) ([]*Tile, error) {
	if m.MaxTiles > 0 && len(coords) > m.MaxTiles {
		return nil, ErrTooManyTiles
	}

	result := make([]*Tile, len(coords))
	groups := map[TileCoord][]int{}
	for i, c := range coords {
		main := c
		if m.MetaGrid != nil {
			mt, err := m.metaMainTile(c)
			if err != nil {
				return nil, err
			}
			main = mt
		}
		groups[main] = append(groups[main], i)
	}

	for main, idxs := range groups {
		tiles, err := m.loadMetatile(ctx, main, idxs, coords)
		if err != nil {
			return nil, err
		}
		for j, idx := range idxs {
			result[idx] = tiles[j]
		}
	}
	return result, nil
}

func (m *TileManager) metaMainTile(c TileCoord) (TileCoord, error) {
	metaSize, err := m.MetaGrid.MetaSize(c.Z)
	if err != nil {
		return TileCoord{}, err
	}
	return TileCoord{X: (c.X / metaSize[0]) * metaSize[0], Y: (c.Y / metaSize[1]) * metaSize[1], Z: c.Z}, nil
}

// loadMetatile ensures every tile belonging to main's metatile is cached,
// then returns the subset the caller actually asked for (idxs into
// coords).
//
// This is the build protocol from mapproxy.core.cache.TileManager
// ._create_meta_tile: cache-check, lock, double-check, fetch, split,
// store-all, unlock.
func (m *TileManager) loadMetatile(ctx context.Context, main TileCoord, idxs []int, coords []TileCoord) ([]*Tile, error) {
	allCoords, crops, err := m.metatileMembers(main)
	if err != nil {
		return nil, err
	}

	if m.allCached(allCoords) {
		return m.loadAll(idxs, coords)
	}

	key := metatileKey(main)
	_, err, _ = m.sf.Do(key, func() (interface{}, error) {
		if m.allCached(allCoords) {
			return nil, nil
		}
		lock := NewFileLock(m.Cache.LockPath(main))
		return nil, lock.WithLock(func() error {
			if m.allCached(allCoords) {
				return nil
			}
			return m.buildMetatile(ctx, main, allCoords, crops)
		})
	})
	if err != nil {
		return nil, err
	}
	return m.loadAll(idxs, coords)
}

func (m *TileManager) metatileMembers(main TileCoord) ([]TileCoord, []MetaTileCrop, error) {
	if m.MetaGrid == nil {
		return []TileCoord{main}, []MetaTileCrop{{Col: 0, Row: 0}}, nil
	}
	return m.MetaGrid.Tiles(main)
}

func (m *TileManager) allCached(coords []TileCoord) bool {
	for _, c := range coords {
		if v := m.misses.Get(metatileKey(c)); v != nil && v.Value() {
			return false
		}
		ok, err := m.Cache.IsCached(c)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func (m *TileManager) loadAll(idxs []int, coords []TileCoord) ([]*Tile, error) {
	out := make([]*Tile, len(idxs))
	for j, idx := range idxs {
		c := coords[idx]
		src, err := m.Cache.Load(c)
		if err != nil {
			return nil, err
		}
		ts, _ := m.Cache.TimestampCreated(c)
		out[j] = &Tile{Coord: c, Source: src, Stored: true, Timestamp: ts}
	}
	return out, nil
}

func (m *TileManager) buildMetatile(ctx context.Context, main TileCoord, allCoords []TileCoord, crops []MetaTileCrop) error {
	bbox, size, err := m.metatileRequest(main)
	if err != nil {
		return err
	}

	m.log.Debugw("building metatile", "metatile", main, "tiles", len(allCoords))
	m.misses.Set(metatileKey(main), true, ttlcache.DefaultTTL)
	defer m.misses.Delete(metatileKey(main))

	metaImgSrc, err := m.Source.GetMap(ctx, bbox, m.Grid.SRSCode, size)
	if err != nil {
		return fmt.Errorf("%w: metatile %s: %v", ErrTileSource, main, err)
	}
	metaImg, err := metaImgSrc.AsImage()
	if err != nil {
		return err
	}

	if m.MetaGrid == nil {
		return m.Cache.Store(main, NewImageSource(metaImg))
	}

	tileSize := m.Grid.TileSize
	metaBuffer := m.metaBufferFor(main.Z)
	splitter := NewTileSplitter(metaImg)
	for i, coord := range allCoords {
		tile, err := splitter.GetTile(crops[i], tileSize, metaBuffer)
		if err != nil {
			return err
		}
		if err := m.Cache.Store(coord, tile); err != nil {
			return err
		}
	}
	return nil
}

// metaBufferFor exposes the buffer MetaGrid was built with; MetaGrid keeps
// it private since callers normally only need Tiles/MetaBBox/TileSize, but
// TileManager needs it directly when locating each tile's crop rectangle.
func (m *TileManager) metaBufferFor(level int) int {
	size, err := m.MetaGrid.TileSize(level)
	if err != nil {
		return 0
	}
	metaSize, err := m.MetaGrid.MetaSize(level)
	if err != nil {
		return 0
	}
	bufW := (size[0] - metaSize[0]*m.Grid.TileSize[0]) / 2
	return bufW
}

func (m *TileManager) metatileRequest(main TileCoord) (BBox, [2]int, error) {
	if m.MetaGrid == nil {
		bbox, err := m.Grid.TileBBox(main)
		if err != nil {
			return BBox{}, [2]int{}, err
		}
		return bbox, m.Grid.TileSize, nil
	}
	bbox, err := m.MetaGrid.MetaBBox(main)
	if err != nil {
		return BBox{}, [2]int{}, err
	}
	size, err := m.MetaGrid.TileSize(main.Z)
	if err != nil {
		return BBox{}, [2]int{}, err
	}
	return bbox, size, nil
}

// RemoveTileCoords deletes the given tiles from the cache, e.g. as part of
// a CleanupTask.
//
// Grounded on mapproxy.core.cache.TileManager (remove path referenced from
// seed/seeder.py TileCleanupWorker).
func (m *TileManager) RemoveTileCoords(coords []TileCoord) error {
	for _, c := range coords {
		if err := m.Cache.Remove(c); err != nil {
			return err
		}
	}
	return nil
}

// Close releases background resources (the negative-lookup cache's janitor
// goroutine).
func (m *TileManager) Close() {
	m.misses.Stop()
}
