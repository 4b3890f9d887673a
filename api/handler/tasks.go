package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/auspex/agent"
	"github.com/use-agent/auspex/api/envelope"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/webhook"
)

// task is one in-flight or completed agent run.
type task struct {
	ID         string
	Status     taskStatus
	Result     *agent.AgentResult
	CreatedAt  int64
	WebhookURL string
}

type taskStatus string

const (
	taskQueued  taskStatus = "queued"
	taskRunning taskStatus = "running"
	taskDone    taskStatus = "done"
	taskFailed  taskStatus = "failed"
)

// taskStore holds all in-flight and completed tasks.
var taskStore sync.Map

func init() {
	// Background goroutine to expire tasks older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			taskStore.Range(func(key, value any) bool {
				t := value.(*task)
				if t.CreatedAt < cutoff {
					taskStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// TaskRequestBody is the POST /api/v1/tasks body.
type TaskRequestBody struct {
	URL           string `json:"url" binding:"required"`
	Prompt        string `json:"prompt" binding:"required"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
	TimeoutMs     *int64 `json:"timeout_ms,omitempty"`
	Vision        *bool  `json:"vision,omitempty"`
	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// TaskSubmitResponse is returned immediately on submission.
type TaskSubmitResponse struct {
	ID     string     `json:"id"`
	Status taskStatus `json:"status"`
}

// TaskStatusResponse is returned by GET /api/v1/tasks/:id.
type TaskStatusResponse struct {
	ID     string             `json:"id"`
	Status taskStatus         `json:"status"`
	Result *agent.AgentResult `json:"result,omitempty"`
}

// PostTask returns a handler for POST /api/v1/tasks. It creates a task
// record and launches the agent run in the background; the caller polls
// GET /api/v1/tasks/:id (or supplies webhook_url) for the result.
func PostTask(ag *agent.Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TaskRequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, envelope.New(envelope.ErrCodeInvalidInput, err.Error()))
			return
		}

		id := "task-" + randomTaskID()
		t := &task{ID: id, Status: taskQueued, CreatedAt: time.Now().Unix(), WebhookURL: req.WebhookURL}
		taskStore.Store(id, t)

		opts := config.RunOptions{
			URL:           req.URL,
			Prompt:        req.Prompt,
			MaxIterations: req.MaxIterations,
			TimeoutMs:     req.TimeoutMs,
			Vision:        req.Vision,
		}

		go runTask(ag, t, opts, req.WebhookSecret)

		c.JSON(http.StatusAccepted, TaskSubmitResponse{ID: id, Status: taskQueued})
	}
}

// GetTask returns a handler for GET /api/v1/tasks/:id.
func GetTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		val, ok := taskStore.Load(id)
		if !ok {
			c.JSON(http.StatusNotFound, envelope.New(envelope.ErrCodeNotFound, "task not found"))
			return
		}
		t := val.(*task)
		c.JSON(http.StatusOK, TaskStatusResponse{ID: t.ID, Status: t.Status, Result: t.Result})
	}
}

func runTask(ag *agent.Agent, t *task, opts config.RunOptions, webhookSecret string) {
	t.Status = taskRunning

	result := ag.Run(context.Background(), opts)
	t.Result = result

	if result.Status == agent.StatusDone {
		t.Status = taskDone
	} else {
		t.Status = taskFailed
	}

	slog.Info("task finished", "id", t.ID, "status", t.Status, "agent_status", result.Status)

	if t.WebhookURL != "" {
		webhook.DeliverAsync(t.WebhookURL, webhookSecret, &webhook.Event{
			Type:      webhookEventType(t.Status),
			TaskID:    t.ID,
			Timestamp: time.Now().Unix(),
			Data:      result,
		})
	}
}

func webhookEventType(s taskStatus) string {
	if s == taskDone {
		return "task.completed"
	}
	return "task.failed"
}

func randomTaskID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
