package models

import (
	"time"
)

// GrantKind discriminates which auth mechanism a resource session proves.
type GrantKind int

const (
	GrantNone GrantKind = iota
	GrantPincode
	GrantPassword
	GrantWhitelist
	GrantAccessToken
	GrantUserSession
)

func (k GrantKind) String() string {
	switch k {
	case GrantPincode:
		return "pincode"
	case GrantPassword:
		return "password"
	case GrantWhitelist:
		return "whitelist"
	case GrantAccessToken:
		return "access_token"
	case GrantUserSession:
		return "user_session"
	default:
		return "none"
	}
}

// SessionGrant is the tagged form of a session's linkage. At most one
// linkage id is set per session row by construction; Grant() collapses the
// five nullable columns into one discriminated value so callers can switch
// exhaustively.
type SessionGrant struct {
	Kind GrantKind
	ID   uint
}

// ResourceSession is a previously-established grant tied to exactly one of
// the five linkage ids. The raw cookie token is never stored, only its
// SHA-256 digest.
type ResourceSession struct {
	Base
	TokenHash     string    `gorm:"uniqueIndex;not null" json:"-"`
	ResourceID    uint      `gorm:"index;not null" json:"resourceId"`
	ExpiresAt     time.Time `gorm:"index;not null" json:"expiresAt"`
	SessionLength int64     `json:"sessionLength"` // seconds
	DoNotExtend   bool      `json:"doNotExtend"`

	// IsRequestToken marks a one-time exchange token used to transfer a
	// session between request legs. It must never grant access itself.
	IsRequestToken bool `json:"isRequestToken"`

	PasswordID    *uint `json:"passwordId,omitempty"`
	PincodeID     *uint `json:"pincodeId,omitempty"`
	WhitelistID   *uint `json:"whitelistId,omitempty"`
	AccessTokenID *uint `json:"accessTokenId,omitempty"`
	UserSessionID *uint `json:"userSessionId,omitempty"`
}

// Grant returns the single linkage the session carries. Linkage ids are
// checked in the chain's precedence order so a malformed row with several
// ids set degrades deterministically.
func (s *ResourceSession) Grant() SessionGrant {
	switch {
	case s.PincodeID != nil:
		return SessionGrant{Kind: GrantPincode, ID: *s.PincodeID}
	case s.PasswordID != nil:
		return SessionGrant{Kind: GrantPassword, ID: *s.PasswordID}
	case s.WhitelistID != nil:
		return SessionGrant{Kind: GrantWhitelist, ID: *s.WhitelistID}
	case s.AccessTokenID != nil:
		return SessionGrant{Kind: GrantAccessToken, ID: *s.AccessTokenID}
	case s.UserSessionID != nil:
		return SessionGrant{Kind: GrantUserSession, ID: *s.UserSessionID}
	default:
		return SessionGrant{Kind: GrantNone}
	}
}

// Expired reports whether the session's absolute expiry has passed.
func (s *ResourceSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// UserSession is a platform-level (SSO) login session, distinct from a
// ResourceSession. Resource sessions with UserSessionID set derive their
// access from it.
type UserSession struct {
	Base
	TokenHash string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	User      *User     `json:"user,omitempty"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
}

func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}
