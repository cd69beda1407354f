package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/internal/common/logger"
	"github.com/rizkirmdhn/douyindl/internal/downloader"
	"github.com/rizkirmdhn/douyindl/internal/extractor"
	"github.com/rizkirmdhn/douyindl/internal/manager"
	"github.com/rizkirmdhn/douyindl/internal/thumbnail"
	"github.com/rizkirmdhn/douyindl/internal/web/handler"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load the configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	webCfg := cfg.GetWebPanelConfig()
	dlCfg := cfg.GetDownloaderConfig()

	// Initialize logger
	log := logger.New(cfg)
	log.Infof("Web panel configuration: %+v", webCfg)

	// Wire the download pipeline
	ext := extractor.New(dlCfg, log)
	thumbs := thumbnail.New(log)
	if !thumbs.Available() {
		log.Warn("ffmpeg not available, thumbnails will be skipped")
	}
	dl := downloader.New(dlCfg, log, ext, thumbs)
	mgr := manager.New(dlCfg.OutputDir, log, dl)

	// Initialize the gin router
	r := gin.Default()

	// Setup Handlers
	h := handler.NewHandler(dlCfg, log, mgr)

	// Register routes
	h.RegisterRoutes(r)

	// Start the web server
	addr := fmt.Sprintf("%s:%d", webCfg.Host, webCfg.Port)
	log.Infof("Starting web server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}
}
