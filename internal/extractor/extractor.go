package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds the share page fetch
	DefaultTimeout = 10 * time.Second

	// videoURLTemplate builds the watermark-free playback URL from the
	// asset id captured out of the page markup
	videoURLTemplate = "https://www.iesdouyin.com/aweme/v1/play/?video_id=%s&ratio=1080p&line=0"
)

// Patterns run over the server-rendered share page. The page embeds its
// state as escaped JSON, so each field is isolated with a narrow pattern
// instead of a full JSON parse.
var (
	videoPattern      = regexp.MustCompile(`"video":\{"play_addr":\{"uri":"([a-z0-9]+)"`)
	statsPattern      = regexp.MustCompile(`"statistics"\s*:\s*\{([\s\S]*?)\},`)
	nicknamePattern   = regexp.MustCompile(`"nickname":\s*"([^"]+)",\s*"signature":\s*"([^"]+)"`)
	createTimePattern = regexp.MustCompile(`"create_time":\s*(\d+)`)
	descPattern       = regexp.MustCompile(`"desc":\s*"([^"]+)"`)

	awemeIDPattern      = regexp.MustCompile(`"aweme_id"\s*:\s*"([^"]+)"`)
	commentCountPattern = regexp.MustCompile(`"comment_count"\s*:\s*(\d+)`)
	diggCountPattern    = regexp.MustCompile(`"digg_count"\s*:\s*(\d+)`)
	shareCountPattern   = regexp.MustCompile(`"share_count"\s*:\s*(\d+)`)
	collectCountPattern = regexp.MustCompile(`"collect_count"\s*:\s*(\d+)`)

	imagePairPattern = regexp.MustCompile(`\{"uri":"[^\s"]+","url_list":\["(https://p\d{1,2}-sign\.douyinpic\.com/[^"]+)"`)
	imageURIPattern  = regexp.MustCompile(`"uri":"([^\s"]+)","url_list":`)
)

// Extractor fetches a Douyin share page and parses the embedded metadata.
// It is safe for concurrent use; the HTTP client is a stateless request
// factory shared across calls.
type Extractor struct {
	cfg    *config.DownloaderConfig
	log    *logrus.Logger
	client *http.Client
}

// New creates a new Extractor
func New(cfg *config.DownloaderConfig, log *logrus.Logger) *Extractor {
	return &Extractor{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// FetchInfo retrieves the share page for the given URL and extracts the
// video metadata from it. All failures come back as a nil info plus an
// error; individual metadata pattern misses degrade to zero values
// instead of failing the whole extraction.
func (e *Extractor) FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	e.log.WithField("url", url).Info("Fetching video info")

	body, err := e.fetchPage(ctx, url)
	if err != nil {
		e.log.WithError(err).WithField("url", url).Error("Error fetching share page")
		return nil, err
	}

	info := &models.VideoInfo{Type: models.ContentTypeVideo}

	// Classify: the video asset pattern decides between a single video
	// and an image gallery.
	if m := videoPattern.FindStringSubmatch(body); m != nil {
		info.VideoURL = fmt.Sprintf(videoURLTemplate, m[1])
		e.log.WithField("video_url", info.VideoURL).Debug("Detected video content")
	} else {
		info.Type = models.ContentTypeImage
		info.ImageURLs = parseImageList(body)
		e.log.WithField("images", len(info.ImageURLs)).Debug("Detected image gallery content")
	}

	// The statistics block has no meaningful default, so its absence
	// fails the extraction as a whole.
	stats := statsPattern.FindString(body)
	if stats == "" {
		e.log.WithField("url", url).Warn("Statistics block not found in page")
		return nil, fmt.Errorf("statistics block not found in page")
	}

	info.AwemeID = matchString(awemeIDPattern, stats)
	info.CommentCount = matchInt(commentCountPattern, stats)
	info.DiggCount = matchInt(diggCountPattern, stats)
	info.ShareCount = matchInt(shareCountPattern, stats)
	info.CollectCount = matchInt(collectCountPattern, stats)

	if m := nicknamePattern.FindStringSubmatch(body); m != nil {
		info.Nickname = m[1]
		info.Signature = m[2]
	}
	if ts := matchInt64(createTimePattern, body); ts > 0 {
		info.CreateTime = formatTimestamp(ts)
	}
	info.Desc = matchString(descPattern, body)

	e.log.WithFields(logrus.Fields{
		"aweme_id": info.AwemeID,
		"type":     info.Type,
	}).Info("Extraction completed")

	return info, nil
}

// fetchPage issues the GET request with the mobile browser User-Agent and
// returns the response body as a string.
func (e *Extractor) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	return string(body), nil
}

// parseImageList extracts the gallery image URLs from the page body.
// Duplicate uri tokens across the page collapse to a single URL, keeping
// the first candidate seen for each uri in page order. Candidates served
// from an /obj/ path are not downloadable and are dropped.
func parseImageList(body string) []string {
	content := strings.ReplaceAll(body, `\u002F`, "/")

	candidates := imagePairPattern.FindAllStringSubmatch(content, -1)
	uris := imageURIPattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]bool, len(uris))
	var urls []string
	for _, m := range uris {
		uri := m[1]
		if seen[uri] {
			continue
		}
		seen[uri] = true

		for _, c := range candidates {
			if strings.Contains(c[1], uri) {
				if !strings.Contains(c[1], "/obj/") {
					urls = append(urls, c[1])
				}
				break
			}
		}
	}

	return urls
}

// formatTimestamp renders the platform's epoch seconds as a local time string.
func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func matchString(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func matchInt(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return 0
}

func matchInt64(re *regexp.Regexp, s string) int64 {
	if m := re.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}
