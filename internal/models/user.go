package models

// Org is the owning organization of resources and users. Identity and
// membership are provisioned externally; this service reads them to resolve
// SSO grants and apply org-level access policy.
type Org struct {
	Base
	Name string `gorm:"not null" json:"name" validate:"required,min=2"`

	// MaxSessionLength caps resource session length in seconds. Zero
	// disables the cap.
	MaxSessionLength int64 `json:"maxSessionLength"`

	// RequireTwoFactor denies SSO-derived access for users without a
	// second factor enrolled (device-posture style policy).
	RequireTwoFactor bool `json:"requireTwoFactor"`

	// Tier gates paid features such as branded login domains.
	Tier string `gorm:"default:'free'" json:"tier"`

	// LoginDomain, when set and the tier allows it, replaces the default
	// auth redirect base with the org's own domain.
	LoginDomain string `json:"loginDomain,omitempty"`
}

// PaidTier reports whether the org's tier unlocks paid features.
func (o *Org) PaidTier() bool {
	return o.Tier == "paid" || o.Tier == "enterprise"
}

type User struct {
	Base
	Email            string `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Username         string `gorm:"uniqueIndex;not null" json:"username"`
	Name             string `json:"name"`
	EmailVerified    bool   `json:"emailVerified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// Role is an org-scoped role. Resource access can be granted to a role or
// directly to a user.
type Role struct {
	Base
	OrgID uint   `gorm:"index;not null" json:"orgId"`
	Name  string `gorm:"not null" json:"name"`
}

// UserOrg is a user's membership in an org with exactly one role.
type UserOrg struct {
	Base
	UserID uint `gorm:"index:idx_user_org,unique;not null" json:"userId"`
	OrgID  uint `gorm:"index:idx_user_org,unique;not null" json:"orgId"`
	RoleID uint `gorm:"index;not null" json:"roleId"`
}

// RoleResource grants every member of a role access to a resource.
type RoleResource struct {
	Base
	RoleID     uint `gorm:"index:idx_role_resource,unique;not null" json:"roleId"`
	ResourceID uint `gorm:"index:idx_role_resource,unique;not null" json:"resourceId"`
}

// UserResource grants a single user direct access to a resource.
type UserResource struct {
	Base
	UserID     uint `gorm:"index:idx_user_resource,unique;not null" json:"userId"`
	ResourceID uint `gorm:"index:idx_user_resource,unique;not null" json:"resourceId"`
}
