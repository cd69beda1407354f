package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/internal/common/logger"
	"github.com/rizkirmdhn/douyindl/internal/downloader"
	"github.com/rizkirmdhn/douyindl/internal/extractor"
	"github.com/rizkirmdhn/douyindl/internal/thumbnail"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	url := flag.String("url", "", "Douyin share URL to download")
	out := flag.String("out", "", "Output directory (overrides config)")
	flag.Parse()

	if *url == "" {
		fmt.Println("Usage: douyindl -url <share-url> [-out <directory>]")
		fmt.Println("\nExample:")
		fmt.Println("  douyindl -url https://v.douyin.com/vmyiIsBev5Y/")
		os.Exit(1)
	}

	// Load the configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	dlCfg := cfg.GetDownloaderConfig()
	if *out != "" {
		dlCfg.OutputDir = *out
	}

	// Initialize logger
	log := logger.New(cfg)
	log.Infof("Downloader configuration: %+v", dlCfg)

	// Cancel the download on SIGINT/SIGTERM; the in-flight network call
	// is abandoned through the request context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %s, cancelling...", sig)
		cancel()
	}()

	// Wire the pipeline
	ext := extractor.New(dlCfg, log)
	thumbs := thumbnail.New(log)
	if !thumbs.Available() {
		log.Warn("ffmpeg not available, thumbnails will be skipped")
	}
	dl := downloader.New(dlCfg, log, ext, thumbs)

	result := dl.Download(ctx, *url, dlCfg.OutputDir, func(percent int, message string) {
		fmt.Printf("\rprogress: %3d%% %s", percent, message)
	})
	fmt.Println()

	if !result.Success {
		log.Errorf("Download failed: %s", result.Error)
		os.Exit(1)
	}

	// Print summary
	fmt.Println("\n=== Download Summary ===")
	if result.VideoInfo != nil {
		fmt.Printf("Title:    %s\n", result.VideoInfo.Desc)
		fmt.Printf("Author:   %s\n", result.VideoInfo.Nickname)
		fmt.Printf("Type:     %s\n", result.VideoInfo.Type)
		fmt.Printf("Likes:    %d  Comments: %d  Shares: %d  Collects: %d\n",
			result.VideoInfo.DiggCount, result.VideoInfo.CommentCount,
			result.VideoInfo.ShareCount, result.VideoInfo.CollectCount)
	}
	for _, f := range result.Files {
		fmt.Printf("File:     %s (%s)\n", f.Path, humanize.Bytes(uint64(f.Size)))
		if f.Duration != "" {
			fmt.Printf("Length:   %s\n", f.Duration)
		}
		if f.Thumbnail != "" {
			fmt.Printf("Thumb:    %s\n", f.Thumbnail)
		}
	}
}
