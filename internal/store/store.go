package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"gatecheck/internal/models"
	"gatecheck/internal/verify"
)

// Store implements the verification engine's storage collaborators over
// GORM. Every method is a narrow read; this service never writes resource,
// session or identity rows.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// HashToken returns the hex SHA-256 digest under which tokens and secrets
// are persisted. Raw tokens never touch the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResourceByDomain resolves a resource with its auth surfaces and org.
// Absence is (nil, nil); the caller caches it as a negative entry.
func (s *Store) ResourceByDomain(ctx context.Context, domain string) (*verify.ResourceBundle, error) {
	var resource models.Resource
	err := s.db.WithContext(ctx).Where("full_domain = ?", domain).First(&resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bundle := &verify.ResourceBundle{Resource: resource}

	var org models.Org
	if err := s.db.WithContext(ctx).First(&org, resource.OrgID).Error; err == nil {
		bundle.Org = &org
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var password models.ResourcePassword
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resource.ID).First(&password).Error; err == nil {
		bundle.Password = &password
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var pincode models.ResourcePincode
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resource.ID).First(&pincode).Error; err == nil {
		bundle.Pincode = &pincode
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var headerAuth models.ResourceHeaderAuth
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resource.ID).First(&headerAuth).Error; err == nil {
		bundle.HeaderAuth = &headerAuth
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return bundle, nil
}

func (s *Store) RulesForResource(ctx context.Context, resourceID uint) ([]models.ResourceRule, error) {
	var rules []models.ResourceRule
	err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// SessionByToken resolves a still-valid resource session from a raw cookie
// token by digest. Expired rows read as absent.
func (s *Store) SessionByToken(ctx context.Context, token string) (*models.ResourceSession, error) {
	var session models.ResourceSession
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", HashToken(token), time.Now()).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ValidateAccessToken looks the token up by id, scopes it to the resource,
// checks expiry and compares the secret digest in constant time.
func (s *Store) ValidateAccessToken(ctx context.Context, tokenID, secret string, resourceID uint) (*models.ResourceAccessToken, error) {
	var token models.ResourceAccessToken
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND resource_id = ?", tokenID, resourceID).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if token.Expired(time.Now()) {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(token.SecretHash), []byte(HashToken(secret))) != 1 {
		return nil, nil
	}
	return &token, nil
}

// UserForSession resolves the user behind a still-valid platform session.
func (s *Store) UserForSession(ctx context.Context, userSessionID uint) (*models.User, error) {
	var session models.UserSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", userSessionID, time.Now()).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, session.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) RoleForUser(ctx context.Context, userID, orgID uint) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).
		Joins("JOIN user_orgs ON user_orgs.role_id = roles.id").
		Where("user_orgs.user_id = ? AND user_orgs.org_id = ?", userID, orgID).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) RoleHasResource(ctx context.Context, roleID, resourceID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RoleResource{}).
		Where("role_id = ? AND resource_id = ?", roleID, resourceID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) UserHasResource(ctx context.Context, userID, resourceID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserResource{}).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Count(&count).Error
	return count > 0, err
}
