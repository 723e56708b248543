package verify

import (
	"context"

	"gatecheck/internal/models"
)

// Request is the structured descriptor of one proxied request, as reported
// by the edge. Cookie names in Sessions carry a ".<unixMillis>" suffix to
// disambiguate concurrently-set cookies of the same logical name.
type Request struct {
	Sessions           map[string]string
	Headers            map[string]string
	Query              map[string]string
	OriginalRequestURL string
	Scheme             string
	Host               string
	Path               string
	Method             string
	TLS                bool
	RequestIP          string
	EdgeVersion        string // protocol-version hint, logging only
}

// UserData identifies the SSO user behind an allowed decision.
type UserData struct {
	Username string
	Email    string
	Name     string
	Role     string
}

// Result is the decision returned to the proxy. Valid=false with a
// RedirectURL sends the client to the login UI; HeaderAuthChallenged asks
// the edge to issue a Basic-Auth challenge instead.
type Result struct {
	Valid                bool
	HeaderAuthChallenged bool
	RedirectURL          string
	User                 *UserData
	Reason               int
}

// ResourceBundle is a resource resolved together with its auth surfaces and
// org. It is the unit cached under resource:<host>.
type ResourceBundle struct {
	Resource   models.Resource
	Org        *models.Org
	Password   *models.ResourcePassword
	Pincode    *models.ResourcePincode
	HeaderAuth *models.ResourceHeaderAuth
}

// HasAuthSurface reports whether any authentication mechanism is configured
// on the resource. Both the open-resource fallthrough and the header-auth
// challenge decision go through this single predicate; every new auth
// surface must be added here or it will be silently bypassed.
func (b *ResourceBundle) HasAuthSurface() bool {
	return b.Resource.SSO ||
		b.Resource.EmailWhitelistEnabled ||
		b.Password != nil ||
		b.Pincode != nil ||
		b.HeaderAuth != nil
}

// HasFallbackAuthSurface reports whether any mechanism other than header
// auth could still authenticate the request.
func (b *ResourceBundle) HasFallbackAuthSurface() bool {
	return b.Resource.SSO ||
		b.Resource.EmailWhitelistEnabled ||
		b.Password != nil ||
		b.Pincode != nil
}

// Store is the narrow storage collaborator consumed by the engine. All
// methods are potentially blocking I/O and honor ctx cancellation. Lookups
// return (nil, nil) for plain absence; errors are reserved for storage
// failures.
type Store interface {
	// ResourceByDomain resolves a resource bundle by full domain.
	ResourceByDomain(ctx context.Context, domain string) (*ResourceBundle, error)

	// RulesForResource returns all rules for a resource, enabled or not,
	// in no particular order.
	RulesForResource(ctx context.Context, resourceID uint) ([]models.ResourceRule, error)

	// SessionByToken resolves a still-valid resource session from a raw
	// cookie token.
	SessionByToken(ctx context.Context, token string) (*models.ResourceSession, error)

	// ValidateAccessToken checks id/secret/expiry of a bearer token scoped
	// to the resource.
	ValidateAccessToken(ctx context.Context, tokenID, secret string, resourceID uint) (*models.ResourceAccessToken, error)

	// UserForSession resolves the user behind a still-valid platform (SSO)
	// session id.
	UserForSession(ctx context.Context, userSessionID uint) (*models.User, error)

	// RoleForUser returns the user's role in the org, if a membership
	// exists.
	RoleForUser(ctx context.Context, userID, orgID uint) (*models.Role, error)

	RoleHasResource(ctx context.Context, roleID, resourceID uint) (bool, error)
	UserHasResource(ctx context.Context, userID, resourceID uint) (bool, error)
}

// OrgPolicy applies organization-level access policy. Violations are
// ordinary deny decisions, not errors.
type OrgPolicy interface {
	// EnforceResourceSessionLength rejects sessions that exceed the org's
	// session length cap.
	EnforceResourceSessionLength(ctx context.Context, org *models.Org, session *models.ResourceSession) error

	// EnforceOrgAccess applies user-level posture policy (for example a
	// two-factor requirement) when deriving access from an SSO session.
	EnforceOrgAccess(ctx context.Context, org *models.Org, user *models.User) error
}

// GeoResolver answers best-effort country and ASN lookups for client IPs.
// A false second return means unknown, never an error.
type GeoResolver interface {
	LookupCountry(ctx context.Context, ip string) (string, bool)
	LookupASN(ctx context.Context, ip string) (uint, bool)
}

// AuditSink records decisions. Implementations must not block the caller;
// a failed or dropped record never affects the decision already made.
type AuditSink interface {
	Record(entry models.AuditLogEntry)
}

// FeatureOracle gates paid features. It is consulted only to decide whether
// a branded redirect base should replace the default login path.
type FeatureOracle interface {
	// BrandedRedirectBase returns the org's login base URL when its tier
	// enables branded domains.
	BrandedRedirectBase(ctx context.Context, orgID uint) (string, bool)
}
