package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry is the immutable record of one verification decision.
// Reason codes are stable integers consumed by export features and must not
// be renumbered. Rows are append-only; retention is governed externally.
type AuditLogEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	OrgID      uint      `gorm:"index" json:"orgId"`
	ResourceID uint      `gorm:"index" json:"resourceId"`
	Allowed    bool      `json:"allowed"`
	Reason     int       `gorm:"index;not null" json:"reason"`

	// Actor is the user or token identity when known (username, token
	// title, or basic-auth user).
	Actor string `gorm:"size:255" json:"actor,omitempty"`

	ClientIP string `gorm:"size:64" json:"clientIp,omitempty"`
	Location string `gorm:"size:8" json:"location,omitempty"` // ISO country code

	Host        string         `gorm:"size:255" json:"host"`
	Path        string         `json:"path"`
	Method      string         `gorm:"size:16" json:"method"`
	Scheme      string         `gorm:"size:16" json:"scheme"`
	TLS         bool           `json:"tls"`
	OriginalURL string         `json:"originalUrl"`
	Headers     datatypes.JSON `gorm:"type:jsonb" json:"headers,omitempty"`
	Query       datatypes.JSON `gorm:"type:jsonb" json:"query,omitempty"`
}
