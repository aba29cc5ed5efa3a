package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/rotator"
	"github.com/lysyi3m/config-rotator/app/tasks"
)

const feedContentType = "application/atom+xml; charset=utf-8"

func NewHandler(store FeedStoreInterface, recorder *rotator.Recorder,
	scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		store:     store,
		recorder:  recorder,
		scheduler: scheduler,
		version:   version,
		now:       time.Now,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	file := c.Param("file")
	name, ok := strings.CutSuffix(file, ".xml")
	if !ok || name == "" {
		c.Status(http.StatusNotFound)
		return
	}

	id := feed.Identity{Namespace: c.Param("namespace"), Name: name}
	path, err := h.store.ResolvePath(id)
	if err != nil {
		slog.Debug("Invalid feed identity", "namespace", id.Namespace, "name", id.Name, "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to read feed", "path", path, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if info, err := os.Stat(path); err == nil {
		c.Header("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	}
	c.Header("X-Feed-Identity", id.String())

	c.Data(http.StatusOK, feedContentType, data)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if h.scheduler != nil {
		health["queue_length"] = h.scheduler.QueueLength()
	}

	if feeds, err := h.store.List(); err == nil {
		health["feeds"] = len(feeds)
	} else {
		slog.Error("Failed to list feeds", "root", h.store.Root(), "error", err)
		health["feeds_error"] = err.Error()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	infos, err := h.store.List()
	if err != nil {
		slog.Error("Failed to list feeds", "root", h.store.Root(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list feeds"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(infos))
	for _, info := range infos {
		entry := map[string]interface{}{
			"namespace": info.Identity.Namespace,
			"name":      info.Identity.Name,
			"url":       h.store.FeedURL(info.Identity),
			"entries":   info.Entries,
		}
		if !info.Updated.IsZero() {
			entry["updated"] = info.Updated
		}
		if info.Error != "" {
			entry["error"] = info.Error
		}
		feeds = append(feeds, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIRecordCompletion(c *gin.Context) {
	var event rotator.CompletionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid completion event", "details": err.Error()})
		return
	}

	if event.CompletedAt.IsZero() {
		event.CompletedAt = h.now().UTC()
	}

	completion, err := event.Completion()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid completion event", "details": err.Error()})
		return
	}

	task := tasks.NewRecordCompletionTask(completion, h.recorder)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing record task", "build", completion.Build.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue record task",
			"details": err.Error(),
		})
		return
	}

	feeds := make([]string, 0, len(completion.Results))
	for _, r := range completion.Results {
		feeds = append(feeds, h.store.FeedURL(r.Component.Identity()))
	}

	c.Header("X-Task-ID", task.ID)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"build":   completion.Build.ID,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
		"components": len(completion.Results),
		"feeds":      feeds,
	})
}
