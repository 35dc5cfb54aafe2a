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
	"github.com/geocache/tileserver/internal/maplayer"
	"github.com/geocache/tileserver/internal/server"
	"github.com/geocache/tileserver/internal/tilecache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Serve implements the `serve` CLI command (spec.md §6): run the thin tile
// HTTP collaborator (XYZ + WMS GetMap) over a single grid and a set of
// named WMS-backed layers.
//
// Grounded on cmd/commands/serve.go's ardanlabs/conf config-struct and
// signal-driven graceful shutdown shape, trimmed to the tile-cache core —
// the account/project API this command used to also start has no
// SPEC_FULL module and does not run here.
func Serve(log *zap.SugaredLogger) error {
	cfg := struct {
		Tiles struct {
			SourceURL  string `conf:"required"`
			Layers     string `conf:"default:default"`
			CacheRoot  string `conf:"required"`
			Format     string `conf:"default:png"`
			SRS        string `conf:"default:EPSG:3857"`
			BBox       string `conf:"default:-20037508.34,-20037508.34,20037508.34,20037508.34"`
			TileSize   int    `conf:"default:256"`
			MetaSize   int    `conf:"default:4"`
			MetaBuffer int    `conf:"default:10"`
			Addr       string `conf:"default:0.0.0.0:8081"`
		}
	}{}

	const prefix = ""
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	bbox, err := parseBBox(cfg.Tiles.BBox)
	if err != nil {
		return fmt.Errorf("parsing tiles bbox: %w", err)
	}
	grid, err := tilecache.NewGrid(tilecache.GridOptions{
		SRSCode:  cfg.Tiles.SRS,
		BBox:     bbox,
		TileSize: [2]int{cfg.Tiles.TileSize, cfg.Tiles.TileSize},
		ResType:  tilecache.ResGlobal,
		Levels:   20,
	})
	if err != nil {
		return fmt.Errorf("building tiles grid: %w", err)
	}
	metaGrid := tilecache.NewMetaGrid(grid, [2]int{cfg.Tiles.MetaSize, cfg.Tiles.MetaSize}, cfg.Tiles.MetaBuffer)
	cache := tilecache.NewFileCache(cfg.Tiles.CacheRoot, cfg.Tiles.Format)
	client := tilecache.NewWMSClient(log, cfg.Tiles.SourceURL)
	layerNames := strings.Split(cfg.Tiles.Layers, ",")
	source := tilecache.NewWMSSource(client, layerNames, cfg.Tiles.Format, cfg.Tiles.SRS, false, cfg.Tiles.Format == "png")
	manager := tilecache.NewTileManager(log, grid, metaGrid, cache, source, cfg.Tiles.Format)
	defer manager.Close()
	cacheLayer := maplayer.NewCacheMapLayer(log, grid, manager)

	tileServer := server.NewTileServer(log, grid, map[string]maplayer.MapLayer{
		cfg.Tiles.Layers: cacheLayer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Infof("Received shutdown signal")
		cancel()
	}()
	defer signal.Stop(quit)

	if err := tileServer.ListenAndServe(ctx, cfg.Tiles.Addr); err != nil {
		log.Errorw("tile server stopped", "error", err)
		return err
	}
	log.Sync()
	return nil
}

func createLogger(level zapcore.Level) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.Level.SetLevel(level)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	log := logger.Sugar()
	return log, nil
}
