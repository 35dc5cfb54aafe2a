package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v2"
	"github.com/geocache/tileserver/internal/coverage"
	"github.com/geocache/tileserver/internal/seed"
	"github.com/geocache/tileserver/internal/tilecache"
	"go.uber.org/zap/zapcore"
)

// seedConfig mirrors Serve's nested ardanlabs/conf struct convention, one
// flat group here since the seed/export/grids commands have no
// sub-services to namespace.
//
// Grounded on cmd/commands/serve.go's config struct shape.
type seedConfig struct {
	CacheRoot   string  `conf:"required"`
	SourceURL   string  `conf:"required"`
	Layers      string  `conf:"required"`
	Format      string  `conf:"default:png"`
	SRS         string  `conf:"default:EPSG:3857"`
	BBox        string  `conf:"required"` // "minx,miny,maxx,maxy"
	TileSize    int     `conf:"default:256"`
	MetaSize    int     `conf:"default:4"`
	MetaBuffer  int     `conf:"default:10"`
	Levels      string  `conf:"required"` // "0-14" or "0,1,2,5"
	Concurrency int     `conf:"default:2"`
	DryRun      bool    `conf:"default:false"`
	Rebuild     bool    `conf:"default:false"`
	RefreshAge  time.Duration `conf:"default:0s"` // 0 disables staleness refresh
}

func parseBBox(s string) (tilecache.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return tilecache.BBox{}, fmt.Errorf("invalid bbox %q: want minx,miny,maxx,maxy", s)
	}
	var b tilecache.BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return tilecache.BBox{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		b[i] = v
	}
	return b, nil
}

// parseLevels accepts either a range ("0-14") or a comma list ("0,2,4").
func parseLevels(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "-") && !strings.Contains(s, ",") {
		parts := strings.SplitN(s, "-", 2)
		lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		var levels []int
		for l := lo; l <= hi; l++ {
			levels = append(levels, l)
		}
		return levels, nil
	}
	var levels []int
	for _, p := range strings.Split(s, ",") {
		l, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

func loadSeedConfig() (seedConfig, string, error) {
	var cfg seedConfig
	help, err := conf.Parse("", &cfg)
	return cfg, help, err
}

func buildGridAndManager(cfg seedConfig) (*tilecache.Grid, *tilecache.MetaGrid, *tilecache.TileManager, error) {
	bbox, err := parseBBox(cfg.BBox)
	if err != nil {
		return nil, nil, nil, err
	}
	grid, err := tilecache.NewGrid(tilecache.GridOptions{
		SRSCode:  cfg.SRS,
		BBox:     bbox,
		TileSize: [2]int{cfg.TileSize, cfg.TileSize},
		ResType:  tilecache.ResGlobal,
		Levels:   20,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	metaGrid := tilecache.NewMetaGrid(grid, [2]int{cfg.MetaSize, cfg.MetaSize}, cfg.MetaBuffer)
	log, err := createLogger(zapcore.InfoLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	client := tilecache.NewWMSClient(log, cfg.SourceURL)
	layers := strings.Split(cfg.Layers, ",")
	source := tilecache.NewWMSSource(client, layers, cfg.Format, cfg.SRS, false, cfg.Format == "png")
	cache := tilecache.NewFileCache(cfg.CacheRoot, cfg.Format)
	manager := tilecache.NewTileManager(log, grid, metaGrid, cache, source, cfg.Format)
	return grid, metaGrid, manager, nil
}

// Seed implements the `seed` CLI command (spec.md §6): build every missing
// (and, with -refresh-age, stale) tile within a bbox coverage at the given
// levels.
//
// Grounded on mapproxy.script.seed / seed.seeder.seed(), wired through
// ardanlabs/conf the way cmd/commands/serve.go wires its own config.
func Seed() error {
	cfg, help, err := loadSeedConfig()
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	grid, metaGrid, manager, err := buildGridAndManager(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	levels, err := parseLevels(cfg.Levels)
	if err != nil {
		return err
	}
	bbox, err := parseBBox(cfg.BBox)
	if err != nil {
		return err
	}

	log, err := createLogger(zapcore.InfoLevel)
	if err != nil {
		return err
	}
	seeder := seed.NewSeeder(log, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	defer signal.Stop(sigs)

	task := seed.SeedTask{
		Name:         cfg.BBox,
		Grid:         grid,
		MetaGrid:     metaGrid,
		Manager:      manager,
		Coverage:     coverage.BBoxCoverage{BBox: coverage.BBox(bbox)},
		Levels:       levels,
		RefreshStale: cfg.RefreshAge > 0,
		MaxAge:       cfg.RefreshAge,
		Rebuild:      cfg.Rebuild,
	}

	jobID, err := seeder.Run(ctx, task, cfg.Concurrency, cfg.DryRun)
	if err != nil {
		log.Errorw("seed failed", "job", jobID, "error", err)
		os.Exit(1)
	}
	log.Infow("seed finished", "job", jobID)
	return nil
}
