package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskTotalSize(t *testing.T) {
	task := &Task{
		Result: &DownloadResult{
			Success: true,
			Files: []DownloadedFile{
				{Kind: "image", Size: 1000},
				{Kind: "image", Size: 2000},
			},
		},
	}
	assert.Equal(t, int64(3000), task.TotalSize())
}

func TestTaskHumanSize(t *testing.T) {
	task := &Task{}
	assert.Equal(t, "unknown", task.HumanSize())

	task.Result = &DownloadResult{
		Success: true,
		Files:   []DownloadedFile{{Kind: "video", Size: 2 * 1024 * 1024}},
	}
	assert.Equal(t, "2.1 MB", task.HumanSize())
}

func TestFailure(t *testing.T) {
	result := Failure("something broke")
	assert.False(t, result.Success)
	assert.Equal(t, "something broke", result.Error)
	assert.Nil(t, result.VideoInfo)
	assert.Empty(t, result.Files)
}
