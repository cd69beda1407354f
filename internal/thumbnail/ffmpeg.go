package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// framePosition is the time offset of the extracted still frame
	framePosition = "00:00:01"

	checkTimeout   = 5 * time.Second
	extractTimeout = 10 * time.Second
)

// Extractor produces still-frame previews for downloaded videos using the
// local ffmpeg binary. Everything here is best effort: a missing binary or
// a failed run means "no thumbnail", never a failed download.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Logger
}

// New creates a new Extractor, assuming ffmpeg and ffprobe are in PATH.
func New(log *logrus.Logger) *Extractor {
	return &Extractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		log:         log,
	}
}

// Available reports whether the ffmpeg binary can be executed.
func (e *Extractor) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	return exec.CommandContext(ctx, e.ffmpegPath, "-version").Run() == nil
}

// Extract writes a small still frame next to the video file and returns
// its path. The output name is the video's stem plus a _thumb.jpg suffix.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (string, error) {
	dir := filepath.Dir(videoPath)
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(dir, stem+"_thumb.jpg")

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", framePosition,
		"-i", videoPath,
		"-vframes", "1",
		"-vf", "scale=120:68",
		"-q:v", "2",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("ffmpeg produced no output: %w", err)
	}

	e.log.WithField("thumbnail", outputPath).Debug("Thumbnail extracted")
	return outputPath, nil
}

// Duration returns the video duration in seconds via ffprobe, or 0 when
// it cannot be determined.
func (e *Extractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparsable duration: %w", err)
	}

	return duration, nil
}

// FormatDuration renders a duration in seconds as M:SS or H:MM:SS,
// or "unknown" when the duration is not positive.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}

	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
