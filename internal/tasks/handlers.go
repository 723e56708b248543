package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"gatecheck/internal/models"
	"gatecheck/internal/utils/logger"
)

// TaskHandler processes queued tasks against the database.
type TaskHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{
		db:     db,
		logger: logger.New("task_handler"),
	}
}

// HandleAuditRecord appends one audit entry. Entries are immutable; this is
// the only write path in the service.
func (h *TaskHandler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	var entry models.AuditLogEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		// Malformed payloads can never succeed; don't retry them.
		h.logger.Warn("dropping malformed audit payload: %v", err)
		return fmt.Errorf("unmarshal audit entry: %w: %v", asynq.SkipRetry, err)
	}

	if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to persist audit entry: %w", err)
	}
	return nil
}
