package verify

import (
	"context"
	"time"

	"gatecheck/internal/cache"
	"gatecheck/internal/models"
)

// fakeStore implements Store with per-method hooks. Unset hooks behave as
// plain absence.
type fakeStore struct {
	resourceByDomain    func(domain string) (*ResourceBundle, error)
	rulesForResource    func(resourceID uint) ([]models.ResourceRule, error)
	sessionByToken      func(token string) (*models.ResourceSession, error)
	validateAccessToken func(tokenID, secret string, resourceID uint) (*models.ResourceAccessToken, error)
	userForSession      func(userSessionID uint) (*models.User, error)
	roleForUser         func(userID, orgID uint) (*models.Role, error)
	roleHasResource     func(roleID, resourceID uint) (bool, error)
	userHasResource     func(userID, resourceID uint) (bool, error)

	ruleFetches int
}

func (f *fakeStore) ResourceByDomain(_ context.Context, domain string) (*ResourceBundle, error) {
	if f.resourceByDomain == nil {
		return nil, nil
	}
	return f.resourceByDomain(domain)
}

func (f *fakeStore) RulesForResource(_ context.Context, resourceID uint) ([]models.ResourceRule, error) {
	f.ruleFetches++
	if f.rulesForResource == nil {
		return nil, nil
	}
	return f.rulesForResource(resourceID)
}

func (f *fakeStore) SessionByToken(_ context.Context, token string) (*models.ResourceSession, error) {
	if f.sessionByToken == nil {
		return nil, nil
	}
	return f.sessionByToken(token)
}

func (f *fakeStore) ValidateAccessToken(_ context.Context, tokenID, secret string, resourceID uint) (*models.ResourceAccessToken, error) {
	if f.validateAccessToken == nil {
		return nil, nil
	}
	return f.validateAccessToken(tokenID, secret, resourceID)
}

func (f *fakeStore) UserForSession(_ context.Context, userSessionID uint) (*models.User, error) {
	if f.userForSession == nil {
		return nil, nil
	}
	return f.userForSession(userSessionID)
}

func (f *fakeStore) RoleForUser(_ context.Context, userID, orgID uint) (*models.Role, error) {
	if f.roleForUser == nil {
		return nil, nil
	}
	return f.roleForUser(userID, orgID)
}

func (f *fakeStore) RoleHasResource(_ context.Context, roleID, resourceID uint) (bool, error) {
	if f.roleHasResource == nil {
		return false, nil
	}
	return f.roleHasResource(roleID, resourceID)
}

func (f *fakeStore) UserHasResource(_ context.Context, userID, resourceID uint) (bool, error) {
	if f.userHasResource == nil {
		return false, nil
	}
	return f.userHasResource(userID, resourceID)
}

type fakeGeo struct {
	country      string
	countryKnown bool
	asn          uint
	asnKnown     bool

	countryCalls int
	asnCalls     int
}

func (f *fakeGeo) LookupCountry(_ context.Context, _ string) (string, bool) {
	f.countryCalls++
	return f.country, f.countryKnown
}

func (f *fakeGeo) LookupASN(_ context.Context, _ string) (uint, bool) {
	f.asnCalls++
	return f.asn, f.asnKnown
}

type fakePolicy struct {
	sessionLengthErr error
	orgAccessErr     error
}

func (f *fakePolicy) EnforceResourceSessionLength(_ context.Context, _ *models.Org, _ *models.ResourceSession) error {
	return f.sessionLengthErr
}

func (f *fakePolicy) EnforceOrgAccess(_ context.Context, _ *models.Org, _ *models.User) error {
	return f.orgAccessErr
}

type fakeAudit struct {
	entries []models.AuditLogEntry
}

func (f *fakeAudit) Record(entry models.AuditLogEntry) {
	f.entries = append(f.entries, entry)
}

type fakeFeatures struct {
	base string
	ok   bool
}

func (f *fakeFeatures) BrandedRedirectBase(_ context.Context, _ uint) (string, bool) {
	return f.base, f.ok
}

func newTestVerifier(st *fakeStore, geo *fakeGeo, audit *fakeAudit) *Verifier {
	c := cache.New()
	return New(
		st,
		c,
		NewRuleEngine(st, c, geo, time.Second),
		&fakePolicy{},
		geo,
		audit,
		&fakeFeatures{},
		Config{Version: "test", AccessTTL: time.Second},
	)
}

func uintPtr(v uint) *uint { return &v }
