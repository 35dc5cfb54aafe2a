package tilecache

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"
)

// Tile is one cached (or about-to-be-cached) tile. A Tile with Blank set
// has no coordinate of its own meaning in the pyramid (a deliberately empty
// placeholder, e.g. fully outside a layer's coverage); it is distinct from
// a Tile that simply hasn't been built yet.
//
// Grounded on mapproxy.core.cache.Tile (coord is None => blank, not
// "missing").
type Tile struct {
	Coord     TileCoord
	Blank     bool
	Source    *ImageSource
	Stored    bool
	Timestamp time.Time
	Size      int64
}

// IsMissing reports whether the tile still needs to be built: it isn't a
// deliberate blank placeholder and hasn't been stored yet.
func (t *Tile) IsMissing() bool {
	return !t.Blank && !t.Stored
}

// TileCache is the storage contract shared by FileCache and S3Cache.
type TileCache interface {
	IsCached(c TileCoord) (bool, error)
	Load(c TileCoord) (*ImageSource, error)
	Store(c TileCoord, src *ImageSource) error
	TimestampCreated(c TileCoord) (time.Time, error)
	Remove(c TileCoord) error
	// LockPath returns the path FileLock should use to guard builds of the
	// tile (or its metatile's main tile).
	LockPath(c TileCoord) string
}

// FileCache stores tiles in a directory tree keyed by zoom/x/y, one file
// per tile, with tile freshness determined entirely by file mtime (no
// separate metadata store).
//
// Grounded on mapproxy.core.cache.FileCache.
type FileCache struct {
	Root     string
	FileExt  string
	LockDir  string

	// LinkSingleColorImages, when true, stores single-solid-color tiles as
	// a symlink into a shared content-addressed pool instead of a full
	// copy. Falls back to a regular file automatically the first time
	// os.Symlink fails (e.g. unsupported filesystem), recording the
	// outcome so later stores skip the failing attempt.
	LinkSingleColorImages bool

	symlinkUnsupported bool
}

// NewFileCache builds a FileCache rooted at root, storing tiles with the
// given file extension ("png", "jpeg", ...).
func NewFileCache(root, fileExt string) *FileCache {
	return &FileCache{
		Root:                  root,
		FileExt:               fileExt,
		LockDir:               filepath.Join(root, ".locks"),
		LinkSingleColorImages: true,
	}
}

// levelLocation formats a zoom level the way mapproxy.core.cache.FileCache
// .level_location does: "%02d" zero-padded.
func levelLocation(z int) string {
	return fmt.Sprintf("%02d", z)
}

// tileLocation computes the on-disk path for a tile, splitting x and y
// into three zero-padded three-digit groups each so that no single
// directory ever holds more than 1000 entries.
//
// Grounded on mapproxy.core.cache.FileCache.tile_location.
func (c *FileCache) tileLocation(coord TileCoord) string {
	x, y := coord.X, coord.Y
	return filepath.Join(
		c.Root,
		levelLocation(coord.Z),
		fmt.Sprintf("%03d", x/1000000),
		fmt.Sprintf("%03d", (x/1000)%1000),
		fmt.Sprintf("%03d", x%1000),
		fmt.Sprintf("%03d", y/1000000),
		fmt.Sprintf("%03d", (y/1000)%1000),
		fmt.Sprintf("%03d.%s", y%1000, c.FileExt),
	)
}

// singleColorLocation is the shared content-addressed path for a solid
// color tile, keyed by its RGBA hex value.
//
// Grounded on mapproxy.core.cache.FileCache._single_color_tile_location.
func (c *FileCache) singleColorLocation(col color.RGBA) string {
	return filepath.Join(c.Root, "single_color_tiles",
		fmt.Sprintf("%02x%02x%02x%02x.%s", col.R, col.G, col.B, col.A, c.FileExt))
}

func (c *FileCache) LockPath(coord TileCoord) string {
	os.MkdirAll(c.LockDir, 0o755)
	return filepath.Join(c.LockDir, fmt.Sprintf("%d-%d-%d.lck", coord.Z, coord.X, coord.Y))
}

func (c *FileCache) IsCached(coord TileCoord) (bool, error) {
	_, err := os.Lstat(c.tileLocation(coord))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TimestampCreated returns the tile file's mtime, the sole freshness
// signal the cache keeps (no side metadata store).
//
// Grounded on mapproxy.core.cache.FileCache._update_tile_metadata /
// timestamp_created.
func (c *FileCache) TimestampCreated(coord TileCoord) (time.Time, error) {
	info, err := os.Stat(c.tileLocation(coord))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (c *FileCache) Load(coord TileCoord) (*ImageSource, error) {
	loc := c.tileLocation(coord)
	if _, err := os.Stat(loc); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return NewImageSourceFromFile(loc), nil
}

// Store writes src to its tile location, detecting single-solid-color
// tiles and routing them through the shared pool when
// LinkSingleColorImages is enabled. Writes are atomic: a temp file is
// written in the destination directory and renamed into place so
// concurrent readers never observe a partial file.
//
// Grounded on mapproxy.core.cache.FileCache.store / _store.
func (c *FileCache) Store(coord TileCoord, src *ImageSource) error {
	loc := c.tileLocation(coord)
	if err := os.MkdirAll(filepath.Dir(loc), 0o755); err != nil {
		return err
	}

	if c.LinkSingleColorImages {
		if col, solid := soleColor(src); solid {
			if c.linkSingleColor(loc, col, src) {
				return nil
			}
		}
	}
	return c.writeAtomic(loc, src)
}

func (c *FileCache) linkSingleColor(dstLoc string, col color.RGBA, src *ImageSource) bool {
	if c.symlinkUnsupported {
		return false
	}
	shared := c.singleColorLocation(col)
	if _, err := os.Stat(shared); err != nil {
		if err := os.MkdirAll(filepath.Dir(shared), 0o755); err != nil {
			return false
		}
		if err := c.writeAtomic(shared, src); err != nil {
			return false
		}
	}
	os.Remove(dstLoc)
	if err := os.Symlink(shared, dstLoc); err != nil {
		c.symlinkUnsupported = true
		return false
	}
	return true
}

func (c *FileCache) writeAtomic(loc string, src *ImageSource) error {
	tmp := loc + fmt.Sprintf(".tmp-%d", os.Getpid())
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := src.Encode(f, c.FileExt); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, loc)
}

func (c *FileCache) Remove(coord TileCoord) error {
	err := os.Remove(c.tileLocation(coord))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// soleColor reports whether img is a single solid color, and which one.
// Limited to a full-pixel scan; callers only call this on freshly rendered
// tiles/metatile crops, never on large images.
func soleColor(src *ImageSource) (color.RGBA, bool) {
	img, err := src.AsImage()
	if err != nil {
		return color.RGBA{}, false
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return color.RGBA{}, false
	}
	first := rgbaAt(img, b.Min.X, b.Min.Y)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgbaAt(img, x, y) != first {
				return color.RGBA{}, false
			}
		}
	}
	return first, true
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
