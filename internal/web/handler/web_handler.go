package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/rizkirmdhn/douyindl/internal/manager"
	"github.com/rizkirmdhn/douyindl/internal/web/websocket"
	"github.com/rizkirmdhn/douyindl/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	downloadCfg *config.DownloaderConfig
	log         *logrus.Logger
	manager     *manager.Manager
	wsHub       *websocket.Hub
}

// NewHandler wires the task manager to the WebSocket hub so every task
// event reaches the connected panel clients.
func NewHandler(dlCfg *config.DownloaderConfig, log *logrus.Logger, mgr *manager.Manager) *Handler {
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	handler := &Handler{
		downloadCfg: dlCfg,
		log:         log,
		manager:     mgr,
		wsHub:       wsHub,
	}

	mgr.Subscribe(handler.relayEvent)

	return handler
}

// RegisterRoutes registers all the routes for the web handler
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.WebSocketHandler())

	api := r.Group("/api")
	{
		api.POST("/downloads", h.CreateDownloadHandler())
		api.GET("/downloads", h.ListDownloadsHandler())
		api.GET("/downloads/:id", h.GetDownloadHandler())
		api.GET("/stats", h.GetStatsHandler())
	}
}

// WebSocketHandler returns the WebSocket connection handler
func (h *Handler) WebSocketHandler() gin.HandlerFunc {
	return websocket.Handler(h.wsHub, h.log)
}

// CreateDownloadHandler accepts a share URL and queues a download task
func (h *Handler) CreateDownloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			URL string `json:"url" binding:"required"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		// The task outlives this request, so it runs on a fresh context
		task := h.manager.Add(context.Background(), req.URL)

		c.JSON(http.StatusAccepted, gin.H{
			"message": "Download task queued",
			"task":    task,
		})
	}
}

// ListDownloadsHandler returns all known tasks
func (h *Handler) ListDownloadsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tasks": h.manager.List(),
		})
	}
}

// GetDownloadHandler returns a single task by id
func (h *Handler) GetDownloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := h.manager.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"task": task,
		})
	}
}

// GetStatsHandler returns aggregate download statistics
func (h *Handler) GetStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks := h.manager.List()

		var active, success, failed int
		var totalBytes int64
		for _, t := range tasks {
			switch t.Status {
			case models.StatusPending, models.StatusDownloading:
				active++
			case models.StatusSuccess:
				success++
			case models.StatusError:
				failed++
			}
			totalBytes += t.TotalSize()
		}

		c.JSON(http.StatusOK, gin.H{
			"total_tasks":      len(tasks),
			"active_tasks":     active,
			"success_tasks":    success,
			"failed_tasks":     failed,
			"total_downloaded": humanize.Bytes(uint64(totalBytes)),
			"output_dir":       h.downloadCfg.OutputDir,
		})
	}
}

// relayEvent forwards a manager event to all WebSocket clients
func (h *Handler) relayEvent(event models.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal task event")
		return
	}

	h.wsHub.Broadcast(message)
}
