package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher stands in for the extractor
type fakeFetcher struct {
	info *models.VideoInfo
	err  error
}

func (f *fakeFetcher) FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	return f.info, f.err
}

// fakeThumbnailer stands in for the ffmpeg wrapper
type fakeThumbnailer struct {
	thumb   string
	seconds float64
}

func (f *fakeThumbnailer) Extract(ctx context.Context, videoPath string) (string, error) {
	if f.thumb == "" {
		return "", fmt.Errorf("thumbnail extraction failed")
	}
	return f.thumb, nil
}

func (f *fakeThumbnailer) Duration(ctx context.Context, videoPath string) (float64, error) {
	if f.seconds <= 0 {
		return 0, fmt.Errorf("duration unavailable")
	}
	return f.seconds, nil
}

func newTestDownloader(fetcher *fakeFetcher, thumbs Thumbnailer) *Downloader {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.DownloaderConfig{UserAgent: config.DefaultUserAgent}
	return New(cfg, log, fetcher, thumbs)
}

func TestDownloadVideo(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type:     models.ContentTypeVideo,
		VideoURL: srv.URL,
		Desc:     "Hello/World:Test",
		AwemeID:  "7001",
	}}
	d := newTestDownloader(fetcher, nil)
	outDir := t.TempDir()

	var mu sync.Mutex
	var percents []int
	result := d.Download(context.Background(), "https://v.douyin.com/test/", outDir, func(percent int, message string) {
		mu.Lock()
		percents = append(percents, percent)
		mu.Unlock()
	})

	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	require.Len(t, result.Files, 1)

	file := result.Files[0]
	assert.Equal(t, "video", file.Kind)
	assert.True(t, file.NoWatermark)
	assert.Equal(t, filepath.Join(outDir, "Hello_World_Test_no_watermark.mp4"), file.Path)

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int64(len(payload)), file.Size)

	// Progress is non-decreasing with no consecutive duplicates and
	// finishes at 100
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.Greater(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestDownloadExtractionFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("statistics block not found in page")}
	d := newTestDownloader(fetcher, nil)
	outDir := filepath.Join(t.TempDir(), "out")

	result := d.Download(context.Background(), "https://v.douyin.com/test/", outDir, nil)

	require.False(t, result.Success)
	assert.Equal(t, "unable to retrieve video info", result.Error)
	assert.Empty(t, result.Files)

	// No files are touched when extraction fails
	_, err := os.Stat(outDir)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadGallery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-content-" + r.URL.Path))
	}))
	defer srv.Close()

	// Two of the three URLs share identical text; each still produces its
	// own indexed file
	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type: models.ContentTypeImage,
		Desc: "gallery post",
		ImageURLs: []string{
			srv.URL + "/a.jpeg",
			srv.URL + "/same.jpeg",
			srv.URL + "/same.jpeg",
		},
	}}
	d := newTestDownloader(fetcher, nil)
	outDir := t.TempDir()

	result := d.Download(context.Background(), "https://v.douyin.com/test/", outDir, nil)

	require.True(t, result.Success)
	require.Len(t, result.Files, 3)

	for i, f := range result.Files {
		assert.Equal(t, "image", f.Kind)
		assert.Equal(t, filepath.Join(outDir, fmt.Sprintf("gallery post_%d.jpg", i+1)), f.Path)

		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), f.Size)
	}
}

func TestDownloadGalleryAbortsOnFirstFailure(t *testing.T) {
	var served int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		if served > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("image-content"))
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type:      models.ContentTypeImage,
		Desc:      "gallery",
		ImageURLs: []string{srv.URL + "/1.jpeg", srv.URL + "/2.jpeg", srv.URL + "/3.jpeg"},
	}}
	d := newTestDownloader(fetcher, nil)
	outDir := t.TempDir()

	result := d.Download(context.Background(), "https://v.douyin.com/test/", outDir, nil)

	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Files)

	// The file written before the failure stays on disk
	_, err := os.Stat(filepath.Join(outDir, "gallery_1.jpg"))
	assert.NoError(t, err)
}

func TestDownloadVideoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type:     models.ContentTypeVideo,
		VideoURL: srv.URL,
		Desc:     "blocked",
	}}
	d := newTestDownloader(fetcher, nil)

	result := d.Download(context.Background(), "https://v.douyin.com/test/", t.TempDir(), nil)

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "status code")
}

func TestDownloadVideoDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type:     models.ContentTypeVideo,
		VideoURL: srv.URL,
		Desc:     "clip",
	}}
	d := newTestDownloader(fetcher, &fakeThumbnailer{thumb: "clip_thumb.jpg", seconds: 75})

	result := d.Download(context.Background(), "https://v.douyin.com/test/", t.TempDir(), nil)

	require.True(t, result.Success)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "1:15", result.Files[0].Duration)
	assert.Equal(t, "clip_thumb.jpg", result.Files[0].Thumbnail)
}

func TestDownloadVideoDurationBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{info: &models.VideoInfo{
		Type:     models.ContentTypeVideo,
		VideoURL: srv.URL,
		Desc:     "clip",
	}}

	// A thumbnailer that can produce neither output still leaves the
	// download itself successful
	d := newTestDownloader(fetcher, &fakeThumbnailer{})

	result := d.Download(context.Background(), "https://v.douyin.com/test/", t.TempDir(), nil)

	require.True(t, result.Success)
	require.Len(t, result.Files, 1)
	assert.Empty(t, result.Files[0].Duration)
	assert.Empty(t, result.Files[0].Thumbnail)
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		info *models.VideoInfo
		want string
	}{
		{
			name: "illegal characters replaced",
			info: &models.VideoInfo{Desc: `Hello/World:Test`},
			want: "Hello_World_Test",
		},
		{
			name: "all illegal characters",
			info: &models.VideoInfo{Desc: `a\b/c:d*e?f"g<h>i|j`},
			want: "a_b_c_d_e_f_g_h_i_j",
		},
		{
			name: "fallback to aweme id",
			info: &models.VideoInfo{AwemeID: "7001"},
			want: "douyin_7001",
		},
		{
			name: "truncated to 100 runes",
			info: &models.VideoInfo{Desc: strings.Repeat("长", 150)},
			want: strings.Repeat("长", 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveTitle(tt.info))
		})
	}
}
