package main

import (
	"embed"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/chazu/facet/pkg/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, path, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stderr)
	if path != "" {
		log.Info("loaded config", "path", path)
	}

	app := NewApp(cfg, log)

	err = wails.Run(&options.App{
		Title:  "facet",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 40, G: 40, B: 60, A: 255},
		OnStartup:        app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("wails exited", "err", err)
		os.Exit(1)
	}
}
