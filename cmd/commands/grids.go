package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v2"
	"github.com/geocache/tileserver/internal/tilecache"
)

// gridsConfig describes the one grid definition this command prints —
// configuration-file loading (mapproxy.yaml's -f/-g/--all grid selection)
// is out of scope here (spec.md's Non-goals exclude YAML config loading),
// so a single grid's parameters are passed directly as flags.
type gridsConfig struct {
	SRS            string  `conf:"default:EPSG:3857"`
	BBox           string  `conf:"default:-20037508.34,-20037508.34,20037508.34,20037508.34"`
	TileSize       int     `conf:"default:256"`
	Levels         int     `conf:"default:20"`
	Sqrt2          bool    `conf:"default:false,help:use a sqrt(2) resolution step instead of halving per level"`
	StretchFactor  float64 `conf:"default:1.15"`
	MaxShrinkFactor float64 `conf:"default:4.0"`
}

// Grids implements the `grids` CLI command: print the resolution and tile
// count of every level in a grid definition, the way mapproxy's `grids -l`
// lists a configured grid's levels.
func Grids() error {
	var cfg gridsConfig
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
	resType := tilecache.ResGlobal
	if cfg.Sqrt2 {
		resType = tilecache.ResSqrt2
	}
	grid, err := tilecache.NewGrid(tilecache.GridOptions{
		SRSCode:         cfg.SRS,
		BBox:            bbox,
		TileSize:        [2]int{cfg.TileSize, cfg.TileSize},
		ResType:         resType,
		Levels:          cfg.Levels,
		StretchFactor:   cfg.StretchFactor,
		MaxShrinkFactor: cfg.MaxShrinkFactor,
	})
	if err != nil {
		return err
	}

	fmt.Printf("grid %s  bbox %v  tile size %dx%d\n", cfg.SRS, bbox, cfg.TileSize, cfg.TileSize)
	fmt.Println("level  resolution            grid size")
	for level := 0; level < grid.Levels(); level++ {
		res, err := grid.Resolution(level)
		if err != nil {
			return err
		}
		size, err := grid.GridSize(level)
		if err != nil {
			return err
		}
		fmt.Printf("%5d  %-20.10f  %d x %d\n", level, res, size[0], size[1])
	}
	return nil
}
