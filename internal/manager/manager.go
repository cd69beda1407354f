package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rizkirmdhn/douyindl/internal/downloader"
	"github.com/rizkirmdhn/douyindl/pkg/models"
	"github.com/sirupsen/logrus"
)

// Downloader runs the full extract-and-download pipeline for one URL.
type Downloader interface {
	Download(ctx context.Context, url, outputDir string, onProgress downloader.ProgressFunc) *models.DownloadResult
}

// Subscriber receives task lifecycle events. Events for a single task are
// delivered in order from that task's worker goroutine.
type Subscriber func(event models.Event)

// Manager tracks download tasks and runs each one on its own goroutine,
// keeping slow network calls off the caller.
type Manager struct {
	outputDir string
	log       *logrus.Logger
	dl        Downloader

	mu    sync.RWMutex
	tasks map[string]*models.Task
	order []string
	subs  []Subscriber

	wg sync.WaitGroup
}

// New creates a new Manager
func New(outputDir string, log *logrus.Logger, dl Downloader) *Manager {
	return &Manager{
		outputDir: outputDir,
		log:       log,
		dl:        dl,
		tasks:     make(map[string]*models.Task),
	}
}

// Subscribe registers a subscriber for task events. Must be called before
// the first Add.
func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Add registers a new download task and starts its worker goroutine.
func (m *Manager) Add(ctx context.Context, url string) *models.Task {
	task := &models.Task{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"task_id": task.ID,
		"url":     url,
	}).Info("Download task added")

	m.emit(models.Event{Type: models.EventTaskAdded, TaskID: task.ID, Status: task.Status})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, task)
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(task)
}

// Get returns a copy of a task by id.
func (m *Manager) Get(id string) (*models.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return snapshot(task), true
}

// List returns copies of all tasks in insertion order.
func (m *Manager) List() []*models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, snapshot(m.tasks[id]))
	}
	return tasks
}

// snapshot copies a task so callers can read it without holding m.mu while
// the worker goroutine keeps mutating the stored one. Result is never
// mutated after assignment, so a shallow copy is enough. Callers must hold
// m.mu.
func snapshot(task *models.Task) *models.Task {
	c := *task
	return &c
}

// Wait blocks until all running tasks have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run executes a single download task from start to finish.
func (m *Manager) run(ctx context.Context, task *models.Task) {
	m.setStatus(task, models.StatusDownloading)
	m.setProgress(task, 0, "resolving video info")

	result := m.dl.Download(ctx, task.URL, m.outputDir, func(percent int, message string) {
		m.setProgress(task, percent, message)
	})

	m.mu.Lock()
	task.Result = result
	task.FinishedAt = time.Now()
	if result.Success && result.VideoInfo != nil {
		task.Title = result.VideoInfo.Desc
	}
	m.mu.Unlock()

	if result.Success {
		m.setProgress(task, 100, "download completed")
		m.setStatus(task, models.StatusSuccess)
		m.emit(models.Event{Type: models.EventTaskDone, TaskID: task.ID, Status: task.Status, Result: result})

		m.log.WithFields(logrus.Fields{
			"task_id": task.ID,
			"files":   len(result.Files),
			"size":    task.HumanSize(),
		}).Info("Download task completed")
		return
	}

	m.mu.Lock()
	task.Message = result.Error
	m.mu.Unlock()

	m.setStatus(task, models.StatusError)
	m.emit(models.Event{Type: models.EventTaskError, TaskID: task.ID, Status: task.Status, Error: result.Error})

	m.log.WithFields(logrus.Fields{
		"task_id": task.ID,
		"error":   result.Error,
	}).Error("Download task failed")
}

func (m *Manager) setStatus(task *models.Task, status string) {
	m.mu.Lock()
	task.Status = status
	m.mu.Unlock()

	m.emit(models.Event{Type: models.EventTaskStatus, TaskID: task.ID, Status: status})
}

func (m *Manager) setProgress(task *models.Task, percent int, message string) {
	m.mu.Lock()
	// Progress only moves forward; a late-arriving smaller percent keeps
	// the task where it is.
	if percent < task.Progress {
		percent = task.Progress
	}
	task.Progress = percent
	task.Message = message
	m.mu.Unlock()

	m.emit(models.Event{
		Type:     models.EventTaskProgress,
		TaskID:   task.ID,
		Progress: percent,
		Message:  message,
	})
}

func (m *Manager) emit(event models.Event) {
	m.mu.RLock()
	subs := m.subs
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
