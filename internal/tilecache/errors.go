package tilecache

import "errors"

// Error taxonomy for the cache/render core. Callers should use errors.Is
// against these sentinels rather than string-matching error text.
var (
	// ErrBlankImage reports a query with no data at all (e.g. fully outside
	// a layer's coverage). None of the sources in this package return it.
	ErrBlankImage = errors.New("tilecache: blank image")

	// ErrTileSource wraps failures reaching or decoding a response from an
	// upstream source (WMS/TMS). The underlying transport or decode error
	// is wrapped with %w.
	ErrTileSource = errors.New("tilecache: tile source error")

	// ErrTooManyTiles is returned when a requested bbox/size combination
	// would require assembling more tiles than a manager's configured
	// limit allows.
	ErrTooManyTiles = errors.New("tilecache: too many tiles requested")

	// ErrLockTimeout is returned by FileLock.Acquire when the lock could
	// not be obtained before the configured timeout elapsed.
	ErrLockTimeout = errors.New("tilecache: lock timeout")

	// ErrNoSuchLevel is returned when a TileCoord references a zoom level
	// outside a Grid's configured levels.
	ErrNoSuchLevel = errors.New("tilecache: no such level")

	// ErrOutOfBounds is returned when a tile coordinate falls outside a
	// Grid's level bounds.
	ErrOutOfBounds = errors.New("tilecache: tile out of bounds")

	// ErrUnsupportedSRS reports a spatial reference system the core has no
	// transform for. Nothing in this package returns it: srs.ForEPSG falls
	// back to an identity transform for unknown codes.
	ErrUnsupportedSRS = errors.New("tilecache: unsupported SRS")

	// ErrCacheMiss is an internal sentinel used between FileCache/S3Cache
	// and TileManager to distinguish "not cached" from a real I/O error.
	ErrCacheMiss = errors.New("tilecache: cache miss")
)
