package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/internal/thumbnail"
	"github.com/rizkirmdhn/douyindl/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds each asset fetch
	DefaultTimeout = 30 * time.Second

	chunkSize   = 8192
	maxTitleLen = 100
)

// illegalTitleChars are the characters that cannot appear in filenames
var illegalTitleChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// ProgressFunc receives download progress as an integer percent plus a
// human readable message. It is invoked synchronously from the download
// goroutine and must not block.
type ProgressFunc func(percent int, message string)

// InfoFetcher resolves a share URL into extracted video metadata.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error)
}

// Thumbnailer produces a still-frame preview and reads playback length
// for a finished video file.
type Thumbnailer interface {
	Extract(ctx context.Context, videoPath string) (string, error)
	Duration(ctx context.Context, videoPath string) (float64, error)
}

// Downloader streams extracted media assets to local storage. Each
// invocation is an independent sequential pipeline; only the HTTP client
// is shared between concurrent calls.
type Downloader struct {
	cfg       *config.DownloaderConfig
	log       *logrus.Logger
	client    *http.Client
	extractor InfoFetcher
	thumbs    Thumbnailer
}

// New creates a new Downloader. The thumbnailer may be nil, in which case
// no preview images are produced.
func New(cfg *config.DownloaderConfig, log *logrus.Logger, extractor InfoFetcher, thumbs Thumbnailer) *Downloader {
	return &Downloader{
		cfg:       cfg,
		log:       log,
		extractor: extractor,
		thumbs:    thumbs,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Download resolves the share URL and writes the resulting asset(s) under
// outputDir. It never returns a Go error: every failure is folded into a
// DownloadResult with Success=false and a single message. Files written
// before a failure stay on disk.
func (d *Downloader) Download(ctx context.Context, url, outputDir string, onProgress ProgressFunc) *models.DownloadResult {
	info, err := d.extractor.FetchInfo(ctx, url)
	if err != nil {
		return models.Failure("unable to retrieve video info")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return models.Failure(fmt.Sprintf("failed to create output directory: %v", err))
	}

	title := deriveTitle(info)

	var files []models.DownloadedFile
	switch {
	case info.IsVideo() && info.VideoURL != "":
		file, err := d.downloadVideo(ctx, info.VideoURL, outputDir, title, onProgress)
		if err != nil {
			return models.Failure(err.Error())
		}
		files = append(files, file)

	case info.Type == models.ContentTypeImage && len(info.ImageURLs) > 0:
		imgFiles, err := d.downloadImages(ctx, info.ImageURLs, outputDir, title)
		if err != nil {
			return models.Failure(err.Error())
		}
		files = imgFiles
	}

	return &models.DownloadResult{
		Success:   true,
		VideoInfo: info,
		Files:     files,
	}
}

// downloadVideo streams the no-watermark video to disk in fixed-size
// chunks, reporting progress once per integer percent when the server
// announces a content length.
func (d *Downloader) downloadVideo(ctx context.Context, videoURL, outputDir, title string, onProgress ProgressFunc) (models.DownloadedFile, error) {
	fileName := title + "_no_watermark.mp4"
	path := filepath.Join(outputDir, fileName)

	d.log.WithField("file", fileName).Info("Downloading video")

	resp, err := d.get(ctx, videoURL)
	if err != nil {
		return models.DownloadedFile{}, err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return models.DownloadedFile{}, fmt.Errorf("failed to create video file: %w", err)
	}
	defer out.Close()

	totalSize := resp.ContentLength
	var downloaded int64
	lastPercent := 0

	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return models.DownloadedFile{}, fmt.Errorf("failed to write video file: %w", err)
			}
			downloaded += int64(n)

			if totalSize > 0 {
				progress := float64(downloaded) / float64(totalSize) * 100
				percent := int(progress)
				if percent != lastPercent {
					if onProgress != nil {
						onProgress(percent, fmt.Sprintf("downloading %.1f%%", progress))
					}
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return models.DownloadedFile{}, fmt.Errorf("failed to read video stream: %w", readErr)
		}
	}

	d.log.WithFields(logrus.Fields{
		"path": path,
		"size": downloaded,
	}).Info("Video download completed")

	file := models.DownloadedFile{
		Kind:        "video",
		Path:        path,
		Size:        downloaded,
		NoWatermark: true,
	}

	// The thumbnail, duration and size stat are all best effort
	if d.thumbs != nil {
		thumb, err := d.thumbs.Extract(ctx, path)
		if err != nil {
			d.log.WithError(err).Warn("Failed to extract thumbnail")
		} else {
			file.Thumbnail = thumb
		}

		dur, err := d.thumbs.Duration(ctx, path)
		if err != nil {
			d.log.WithError(err).Warn("Failed to read video duration")
		} else {
			file.Duration = thumbnail.FormatDuration(dur)
		}
	}
	if fi, err := os.Stat(path); err == nil {
		file.Size = fi.Size()
	}

	return file, nil
}

// downloadImages fetches each gallery image in full and writes it
// verbatim. The first failing image aborts the whole gallery.
func (d *Downloader) downloadImages(ctx context.Context, urls []string, outputDir, title string) ([]models.DownloadedFile, error) {
	files := make([]models.DownloadedFile, 0, len(urls))

	for i, imgURL := range urls {
		fileName := fmt.Sprintf("%s_%d.jpg", title, i+1)
		path := filepath.Join(outputDir, fileName)

		d.log.WithFields(logrus.Fields{
			"file":     fileName,
			"progress": fmt.Sprintf("%d/%d", i+1, len(urls)),
		}).Info("Downloading image")

		resp, err := d.get(ctx, imgURL)
		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read image body: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write image file: %w", err)
		}

		files = append(files, models.DownloadedFile{
			Kind: "image",
			Path: path,
			Size: int64(len(data)),
		})
	}

	d.log.WithField("images", len(files)).Info("All images downloaded")
	return files, nil
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp, nil
}

// deriveTitle builds a filesystem-safe title from the description,
// falling back to a name based on the content id.
func deriveTitle(info *models.VideoInfo) string {
	title := info.Desc
	if title == "" {
		title = "douyin_" + info.AwemeID
	}
	title = illegalTitleChars.ReplaceAllString(title, "_")

	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return title
}
