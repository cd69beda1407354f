package models

// Content types
const (
	ContentTypeVideo = "video"
	ContentTypeImage = "img"
)

// VideoInfo holds the metadata extracted from a Douyin share page.
// It is built once per extraction and not modified afterwards.
type VideoInfo struct {
	AwemeID      string   `json:"aweme_id,omitempty"`
	CommentCount int      `json:"comment_count"`
	DiggCount    int      `json:"digg_count"`
	ShareCount   int      `json:"share_count"`
	CollectCount int      `json:"collect_count"`
	Nickname     string   `json:"nickname,omitempty"`
	Signature    string   `json:"signature,omitempty"`
	Desc         string   `json:"desc,omitempty"`
	CreateTime   string   `json:"create_time,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	Type         string   `json:"type"`
	ImageURLs    []string `json:"image_url_list,omitempty"`
}

// IsVideo reports whether the content was classified as a single video.
func (v *VideoInfo) IsVideo() bool {
	return v.Type == ContentTypeVideo
}

// DownloadedFile describes a single file written to disk during a download.
type DownloadedFile struct {
	Kind        string `json:"type"` // "video" or "image"
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	NoWatermark bool   `json:"is_no_watermark,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Duration    string `json:"duration,omitempty"` // "M:SS" playback length, videos only
}

// DownloadResult is the outcome of a single download invocation.
// Success and Error are mutually exclusive: a successful result never
// carries an error message and a failed one never carries files.
type DownloadResult struct {
	Success   bool             `json:"success"`
	VideoInfo *VideoInfo       `json:"video_info,omitempty"`
	Files     []DownloadedFile `json:"downloaded_files,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Failure builds a failed result with the given message.
func Failure(msg string) *DownloadResult {
	return &DownloadResult{Success: false, Error: msg}
}
