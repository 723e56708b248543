package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gatecheck/internal/models"
	"gatecheck/internal/utils/logger"
)

// Features is the paid-feature oracle. It is consulted only to decide
// whether a branded redirect base replaces the default login path, so a
// failed lookup degrades to the default rather than an error.
type Features struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeatures(db *gorm.DB) *Features {
	return &Features{db: db, log: logger.New("Features")}
}

// BrandedRedirectBase returns the org's login base URL when its tier
// enables branded domains and one is configured.
func (f *Features) BrandedRedirectBase(ctx context.Context, orgID uint) (string, bool) {
	var org models.Org
	err := f.db.WithContext(ctx).First(&org, orgID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			f.log.Warn("org lookup failed for branded redirect: %v", err)
		}
		return "", false
	}
	if !org.PaidTier() || org.LoginDomain == "" {
		return "", false
	}
	return "https://" + org.LoginDomain, true
}
