package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resource identifies a published backend reachable through the gateway.
// Config fields are mutated by the management plane; this service only reads.
type Resource struct {
	Base
	GUID                  string `gorm:"uniqueIndex;not null" json:"guid"`
	OrgID                 uint   `gorm:"index;not null" json:"orgId"`
	Org                   *Org   `json:"org,omitempty"`
	Name                  string `gorm:"not null" json:"name" validate:"required,min=2"`
	FullDomain            string `gorm:"uniqueIndex" json:"fullDomain" validate:"omitempty,fqdn"`
	SSL                   bool   `json:"ssl"`
	SSO                   bool   `json:"sso"`
	BlockAccess           bool   `json:"blockAccess"`
	EmailWhitelistEnabled bool   `json:"emailWhitelistEnabled"`
	ApplyRules            bool   `json:"applyRules"`
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.GUID == "" {
		r.GUID = uuid.New().String()
	}
	return nil
}

// ResourceRule is one priority-ordered predicate attached to a resource.
// Lower priority evaluates first; the first matching rule wins.
type ResourceRule struct {
	Base
	ResourceID uint       `gorm:"index;not null" json:"resourceId"`
	Enabled    bool       `gorm:"not null;default:true" json:"enabled"`
	Priority   int        `gorm:"not null" json:"priority"`
	Action     RuleAction `gorm:"not null" json:"action" validate:"required,oneof=ACCEPT DROP PASS"`
	Match      RuleMatch  `gorm:"not null" json:"match" validate:"required"`
	Value      string     `gorm:"not null" json:"value" validate:"required"`
}

// ResourcePassword is the shared-password auth surface (0..1 per resource).
type ResourcePassword struct {
	Base
	ResourceID   uint   `gorm:"uniqueIndex;not null" json:"resourceId"`
	PasswordHash string `gorm:"not null" json:"-"`
}

// ResourcePincode is the numeric-pin auth surface (0..1 per resource).
type ResourcePincode struct {
	Base
	ResourceID  uint   `gorm:"uniqueIndex;not null" json:"resourceId"`
	PincodeHash string `gorm:"not null" json:"-"`
	Digits      int    `gorm:"not null;default:6" json:"digits"`
}

// ResourceHeaderAuth is the HTTP Basic credential auth surface.
// ExtendedCompatibility controls whether a missing Authorization header
// produces a browser challenge instead of a redirect to the login UI.
type ResourceHeaderAuth struct {
	Base
	ResourceID            uint   `gorm:"uniqueIndex;not null" json:"resourceId"`
	CredentialHash        string `gorm:"not null" json:"-"`
	ExtendedCompatibility bool   `json:"extendedCompatibility"`
}

// ResourceAccessToken is a bearer credential: public token id plus a secret
// whose SHA-256 digest is stored.
type ResourceAccessToken struct {
	Base
	ResourceID    uint       `gorm:"index;not null" json:"resourceId"`
	TokenID       string     `gorm:"uniqueIndex;not null" json:"tokenId"`
	SecretHash    string     `gorm:"not null" json:"-"`
	Title         string     `json:"title"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	SessionLength int64      `json:"sessionLength"` // seconds, 0 means default
}

// Expired reports whether the token carries an expiry that has passed.
func (t *ResourceAccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// ResourceWhitelist is one allowed email for a whitelist-enabled resource.
type ResourceWhitelist struct {
	Base
	ResourceID uint   `gorm:"index;not null" json:"resourceId"`
	Email      string `gorm:"not null" json:"email" validate:"required,email"`
}
