package models

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Task status values
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusSuccess     = "success"
	StatusError       = "error"
)

// Event types broadcast to observers
const (
	EventTaskAdded    = "task_added"
	EventTaskProgress = "task_progress"
	EventTaskStatus   = "task_status"
	EventTaskDone     = "task_done"
	EventTaskError    = "task_error"
)

// Task represents one download request tracked by the manager.
type Task struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Title      string          `json:"title,omitempty"`
	Status     string          `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Result     *DownloadResult `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// TotalSize returns the summed size of all downloaded files.
func (t *Task) TotalSize() int64 {
	if t.Result == nil {
		return 0
	}
	var total int64
	for _, f := range t.Result.Files {
		total += f.Size
	}
	return total
}

// HumanSize returns the total downloaded size in human readable form,
// or "unknown" when nothing has been downloaded yet.
func (t *Task) HumanSize() string {
	total := t.TotalSize()
	if total == 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(total))
}

// Event is a task lifecycle notification relayed to subscribers,
// serialized as JSON for the web panel's WebSocket clients.
type Event struct {
	Type     string          `json:"type"`
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status,omitempty"`
	Progress int             `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Result   *DownloadResult `json:"result,omitempty"`
}
