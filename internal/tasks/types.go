package tasks

import "time"

// Task Types
const (
	// TaskTypeAuditRecord appends one verification decision to the audit
	// trail.
	TaskTypeAuditRecord = "audit:record"
)

// Task Queues
const (
	QueueCritical = "critical" // reserved for time-sensitive work
	QueueDefault  = "default"  // audit appends and other regular tasks
	QueueLow      = "low"      // background cleanup
)

// Task Retry / Timeout settings
const (
	RetryDefault   = 3
	TimeoutDefault = 30 * time.Second
)
