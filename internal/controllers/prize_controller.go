package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lotero/internal/app"
	"lotero/internal/ingest"
	"lotero/internal/models"
	"lotero/internal/pkg/gmail"
	"lotero/internal/snapshot"
	"lotero/internal/store"
	"lotero/internal/tasks"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type PrizeController struct {
	App *app.App
	// Queue, when set, moves syncs and backups to the worker.
	Queue Enqueuer
}

// ListPrizes returns stored prizes, newest first.
func (pc *PrizeController) ListPrizes(c *gin.Context) {
	filter := store.Filter{Limit: getLimitWithDefault(c, 100)}

	if slug := c.Query("game"); slug != "" {
		game, ok := models.GameFromSlug(slug)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game"})
			return
		}
		filter.Game = game
	}

	var err error
	if filter.From, err = parseDay(c.Query("from")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
		return
	}
	if filter.To, err = parseDay(c.Query("to")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
		return
	}

	prizes, err := pc.App.Store.List(c.Request.Context(), filter)
	if err != nil {
		log.Printf("failed to list prizes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prizes": prizes,
	})
}

func (pc *PrizeController) GetPrize(c *gin.Context) {
	prize, err := pc.App.Store.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Prize not found"})
			return
		}

		log.Printf("failed to get prize: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prize": prize,
	})
}

// ClearPrizes wipes prizes, config and sync history.
func (pc *PrizeController) ClearPrizes(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pass confirm=true to delete all data"})
		return
	}

	if err := pc.App.Store.Clear(c.Request.Context()); err != nil {
		log.Printf("failed to clear store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (pc *PrizeController) GetStats(c *gin.Context) {
	summary, err := pc.App.Stats(c.Request.Context())
	if err != nil {
		log.Printf("failed to compute stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Sync runs an ingestion pass inline, or queues one when a worker is attached.
func (pc *PrizeController) Sync(c *gin.Context) {
	if pc.Queue != nil {
		task, err := tasks.NewSyncPrizesTask("api", c.Query("backup") == "true")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		pc.enqueue(c, task)
		return
	}

	res, err := pc.App.Sync(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
		case errors.Is(err, gmail.ErrNotAuthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Mailbox not connected"})
		default:
			log.Printf("sync failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed", "result": res})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": res,
	})
}

func (pc *PrizeController) ListSyncs(c *gin.Context) {
	ctx := c.Request.Context()

	logs, err := pc.App.Store.RecentSyncLogs(ctx, getLimitWithDefault(c, 20))
	if err != nil {
		log.Printf("failed to list sync logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	lastSync, err := pc.App.Store.Watermark(ctx)
	if err != nil {
		log.Printf("failed to read watermark: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lastSync": lastSync,
		"syncs":    logs,
	})
}

func (pc *PrizeController) ExportSnapshot(c *gin.Context) {
	doc, err := pc.App.Snapshot.Export(c.Request.Context())
	if err != nil {
		log.Printf("failed to export snapshot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (pc *PrizeController) ImportSnapshot(c *gin.Context) {
	var doc snapshot.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid snapshot document"})
		return
	}

	res, err := pc.App.Snapshot.Import(c.Request.Context(), &doc)
	if err != nil {
		log.Printf("failed to import snapshot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong", "result": res})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": res,
	})
}

func (pc *PrizeController) Backup(c *gin.Context) {
	if !pc.App.Snapshot.HasStorage() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No backup storage configured"})
		return
	}

	if pc.Queue != nil {
		task, err := tasks.NewBackupSnapshotTask("api")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		pc.enqueue(c, task)
		return
	}

	doc, err := pc.App.Snapshot.Backup(c.Request.Context())
	if err != nil {
		log.Printf("backup failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Backup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":    len(doc.Records),
		"exportedAt": doc.ExportedAt,
	})
}

func (pc *PrizeController) Restore(c *gin.Context) {
	if !pc.App.Snapshot.HasStorage() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No backup storage configured"})
		return
	}

	res, err := pc.App.Snapshot.Restore(c.Request.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNoBackup) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No backup found"})
			return
		}

		log.Printf("restore failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Restore failed", "result": res})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": res,
	})
}

func (pc *PrizeController) enqueue(c *gin.Context, task *asynq.Task) {
	info, err := pc.Queue.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.JSON(http.StatusConflict, gin.H{"error": "Task already queued"})
			return
		}

		log.Printf("failed to enqueue %s: %v", task.Type(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"taskId": info.ID,
		"queue":  info.Queue,
	})
}

func getLimitWithDefault(c *gin.Context, defaultValue int) int {
	var err error
	limit := defaultValue
	if c.Query("limit") != "" {
		limit, err = strconv.Atoi(c.Query("limit"))
		if err != nil || limit <= 0 {
			log.Printf("failed to parse limit: %v, using default value: %d", err, defaultValue)
			return defaultValue
		}
	}
	return limit
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
