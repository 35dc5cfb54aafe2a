package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ardanlabs/conf/v2"
	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/tilecache"
	"go.uber.org/zap/zapcore"
)

// exportConfig follows the same named-struct-per-command convention as
// seedConfig.
type exportConfig struct {
	CacheRoot   string `conf:"required"`
	OutputRoot  string `conf:"required"`
	Format      string `conf:"default:png"`
	SRS         string `conf:"default:EPSG:3857"`
	BBox        string `conf:"required"`
	TileSize    int    `conf:"default:256"`
	Levels      string `conf:"required"`
	FlattenDirs bool   `conf:"default:false,help:write tiles as z_x_y.ext instead of a z/x/y.ext directory tree"`
}

// Export implements the `export` CLI command: copy every already-cached
// tile in a bbox/level range out of a FileCache's directory layout into a
// plain output tree, for handing off a pre-seeded area without shipping
// the whole cache (lock files, single-color pool, unrelated levels).
//
// Grounded on mapproxy.script.export (the "tile export" script bundled
// with mapproxy, referenced from original_source), wired through
// ardanlabs/conf the way serve.go wires its own config.
func Export() error {
	var cfg exportConfig
	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	bbox, err := parseBBox(cfg.BBox)
	if err != nil {
		return err
	}
	levels, err := parseLevels(cfg.Levels)
	if err != nil {
		return err
	}
	grid, err := tilecache.NewGrid(tilecache.GridOptions{
		SRSCode:  cfg.SRS,
		BBox:     bbox,
		TileSize: [2]int{cfg.TileSize, cfg.TileSize},
		ResType:  tilecache.ResGlobal,
		Levels:   20,
	})
	if err != nil {
		return err
	}
	cache := tilecache.NewFileCache(cfg.CacheRoot, cfg.Format)

	log, err := createLogger(zapcore.InfoLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	defer signal.Stop(sigs)

	cov := coverage.BBoxCoverage{BBox: coverage.BBox(bbox)}

	var exported, skipped int
	for _, level := range levels {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		tiles, err := grid.TilesInBBox(bbox, level)
		if err != nil {
			return fmt.Errorf("export: level %d: %w", level, err)
		}
		for _, coord := range tiles {
			tb, err := grid.TileBBox(coord)
			if err != nil {
				return err
			}
			if cov.Intersection(coverage.BBox(tb)) == coverage.None {
				continue
			}
			ok, err := cache.IsCached(coord)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
				continue
			}
			src, err := cache.Load(coord)
			if err != nil {
				return fmt.Errorf("export: load %s: %w", coord, err)
			}
			if err := writeExported(cfg.OutputRoot, coord, cfg.Format, cfg.FlattenDirs, src); err != nil {
				return fmt.Errorf("export: write %s: %w", coord, err)
			}
			exported++
		}
	}
	log.Infow("export finished", "exported", exported, "skipped_missing", skipped, "output", cfg.OutputRoot)
	return nil
}

func writeExported(root string, coord tilecache.TileCoord, format string, flatten bool, src *tilecache.ImageSource) error {
	var path string
	if flatten {
		path = fmt.Sprintf("%s/%d_%d_%d.%s", root, coord.Z, coord.X, coord.Y, format)
	} else {
		path = fmt.Sprintf("%s/%d/%d/%d.%s", root, coord.Z, coord.X, coord.Y, format)
	}
	dir := path[:strings.LastIndex(path, "/")]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return src.Encode(f, format)
}
