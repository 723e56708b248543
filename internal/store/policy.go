package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatecheck/internal/models"
)

// ErrPolicyViolation marks an org-policy rejection. It surfaces as an
// ordinary deny decision, never as a request error.
var ErrPolicyViolation = errors.New("org policy violation")

// Policy applies organization-level access policy to sessions and users.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

// EnforceResourceSessionLength rejects sessions longer-lived than the org
// allows, either by their declared length or by their actual age.
func (p *Policy) EnforceResourceSessionLength(ctx context.Context, org *models.Org, session *models.ResourceSession) error {
	if org == nil || org.MaxSessionLength <= 0 {
		return nil
	}
	max := time.Duration(org.MaxSessionLength) * time.Second

	if session.SessionLength > 0 && time.Duration(session.SessionLength)*time.Second > max {
		return fmt.Errorf("%w: session length %ds exceeds org cap %ds",
			ErrPolicyViolation, session.SessionLength, org.MaxSessionLength)
	}
	if age := time.Since(session.CreatedAt); age > max {
		return fmt.Errorf("%w: session age %s exceeds org cap %ds",
			ErrPolicyViolation, age.Truncate(time.Second), org.MaxSessionLength)
	}
	return nil
}

// EnforceOrgAccess applies user-level posture policy when access derives
// from an SSO session.
func (p *Policy) EnforceOrgAccess(ctx context.Context, org *models.Org, user *models.User) error {
	if org == nil {
		return nil
	}
	if org.RequireTwoFactor && !user.TwoFactorEnabled {
		return fmt.Errorf("%w: org requires two-factor enrollment", ErrPolicyViolation)
	}
	return nil
}
