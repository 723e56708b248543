package verify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"gatecheck/internal/cache"
	"gatecheck/internal/models"
	"gatecheck/internal/utils"
	"gatecheck/internal/utils/logger"
)

// Config carries the verifier's tunables. TTLs are short and absolute:
// access-relevant data trades a small staleness window for hot-path speed.
type Config struct {
	Version                  string
	SessionCookieName        string
	AccessTTL                time.Duration
	RequireEmailVerification bool
	TokenIDHeader            string
	TokenSecretHeader        string
	TokenQueryParam          string
}

// Verifier is the verification orchestrator: it composes resource
// resolution, the blocklist check, the rule engine, the authentication
// chain and audit logging into one allow/deny/redirect decision per
// request. It holds no per-request state and is safe for concurrent use.
type Verifier struct {
	store    Store
	cache    *cache.Cache
	rules    *RuleEngine
	policy   OrgPolicy
	geo      GeoResolver
	audit    AuditSink
	features FeatureOracle
	cfg      Config
	log      *logger.Logger
}

func New(store Store, c *cache.Cache, rules *RuleEngine, policy OrgPolicy, geo GeoResolver, audit AuditSink, features FeatureOracle, cfg Config) *Verifier {
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "p_session"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Second
	}
	if cfg.TokenIDHeader == "" {
		cfg.TokenIDHeader = "P-Access-Token-Id"
	}
	if cfg.TokenSecretHeader == "" {
		cfg.TokenSecretHeader = "P-Access-Token"
	}
	if cfg.TokenQueryParam == "" {
		cfg.TokenQueryParam = "p_token"
	}
	return &Verifier{
		store:    store,
		cache:    c,
		rules:    rules,
		policy:   policy,
		geo:      geo,
		audit:    audit,
		features: features,
		cfg:      cfg,
		log:      logger.New("Verifier"),
	}
}

func allow(reason int) *Result {
	return &Result{Valid: true, Reason: reason}
}

func deny(reason int, redirect string) *Result {
	return &Result{Valid: false, Reason: reason, RedirectURL: redirect}
}

// Verify judges one proxied request. Every path through it, success or
// failure, records exactly one audit entry; audit recording is asynchronous
// and never changes the decision. The only errors returned are context
// cancellations; everything else is absorbed into a fail-closed deny.
func (v *Verifier) Verify(ctx context.Context, req *Request) (*Result, error) {
	host := utils.StripHostPort(req.Host)
	clientIP := utils.StripPort(req.RequestIP)
	if req.EdgeVersion != "" {
		v.log.Debug("edge %s verifying %s %s%s", req.EdgeVersion, req.Method, host, req.Path)
	}

	bundle, err := v.resolveResource(ctx, host)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var actor string
	result := v.decide(ctx, req, bundle, clientIP, &actor)
	v.recordAudit(req, bundle, result, actor, clientIP)
	return result, nil
}

func (v *Verifier) decide(ctx context.Context, req *Request, bundle *ResourceBundle, clientIP string, actor *string) *Result {
	// Unknown host: the org is unknown too, so no branded redirect is
	// possible.
	if bundle == nil {
		return deny(ReasonResourceNotFound, "")
	}
	resource := bundle.Resource

	if resource.BlockAccess {
		return deny(ReasonResourceBlocked, "")
	}

	if resource.ApplyRules {
		verdict, err := v.rules.Evaluate(ctx, resource.ID, clientIP, req.Path)
		if err != nil {
			// A broken rule fetch must not turn a firewalled resource
			// into an open one; fall through to the auth chain instead.
			v.log.Warn("rule evaluation failed for resource %d: %v", resource.ID, err)
		}
		switch verdict {
		case VerdictAccept:
			return allow(ReasonRuleAccept)
		case VerdictDrop:
			return deny(ReasonRuleDrop, "")
		case VerdictPass:
			v.log.Debug("rule pass-through for resource %d", resource.ID)
		case VerdictNone:
		}
	}

	// An unauthenticated resource is open by design. HasAuthSurface is the
	// single predicate guarding this fallthrough.
	if !bundle.HasAuthSurface() {
		return allow(ReasonNoAuthConfigured)
	}

	redirect := v.redirectURL(ctx, bundle, req.OriginalRequestURL)

	// Bearer access token, from headers or the combined query parameter.
	if id, secret, ok := v.extractAccessToken(req); ok {
		token, err := v.store.ValidateAccessToken(ctx, id, secret, resource.ID)
		if err != nil {
			v.log.Warn("access token validation failed: %v", err)
		} else if token != nil {
			*actor = tokenActor(token)
			return allow(ReasonValidAccessToken)
		}
	}

	// HTTP Basic credential.
	var basicPresented bool
	if bundle.HeaderAuth != nil {
		cred, presented := extractBasicCredential(req.Headers)
		basicPresented = presented
		if v.checkHeaderAuth(bundle, cred) {
			*actor = cred.user
			return allow(ReasonValidHeaderAuth)
		}
		// Header auth is configured but didn't validate. With no other
		// surface to fall back to and compatibility mode off, stop here.
		if !bundle.HasFallbackAuthSurface() && !bundle.HeaderAuth.ExtendedCompatibility {
			return deny(ReasonNoAuthMethods, redirect)
		}
	}

	// Compatibility-mode header auth asks the edge to prompt for
	// credentials instead of redirecting to the login UI. Clients in this
	// mode (curl, WebDAV agents) typically carry no cookies at all, so the
	// challenge must preempt the no-sessions deny too.
	challenge := bundle.HeaderAuth != nil &&
		bundle.HeaderAuth.ExtendedCompatibility &&
		!basicPresented

	if len(req.Sessions) == 0 {
		if challenge {
			return headerAuthChallenge(redirect)
		}
		return deny(ReasonNoSessions, redirect)
	}

	cookieName := v.cfg.SessionCookieName
	if resource.SSL {
		cookieName += "_s"
	}
	if token := selectSessionCookie(req.Sessions, cookieName); token != "" {
		if sess := v.resolveSession(ctx, token); sess != nil && sess.ResourceID == resource.ID {
			if sess.IsRequestToken {
				// Exchange tokens transfer sessions between request legs
				// and never grant access themselves.
				return deny(ReasonRequestToken, redirect)
			}
			if err := v.policy.EnforceResourceSessionLength(ctx, bundle.Org, sess); err != nil {
				v.log.Info("session length policy rejected session %d: %v", sess.ID, err)
				return deny(ReasonNoAuthMethods, redirect)
			}
			if result := v.checkSessionGrant(ctx, bundle, sess, actor); result != nil {
				return result
			}
		}
	}

	if challenge {
		return headerAuthChallenge(redirect)
	}

	return deny(ReasonNoAuthMethods, redirect)
}

func headerAuthChallenge(redirect string) *Result {
	return &Result{
		Valid:                false,
		HeaderAuthChallenged: true,
		RedirectURL:          redirect,
		Reason:               ReasonNoAuthMethods,
	}
}

// resolveResource loads the resource bundle for a host through the cache.
// Negative lookups are cached the same as positive ones so a hammered
// unknown host doesn't hammer storage.
func (v *Verifier) resolveResource(ctx context.Context, host string) (*ResourceBundle, error) {
	key := cache.Key("resource", host)
	if cached, ok := v.cache.Get(key); ok {
		bundle, _ := cached.(*ResourceBundle)
		return bundle, nil
	}

	bundle, err := v.store.ResourceByDomain(ctx, host)
	if err != nil {
		v.log.Warn("resource lookup failed for host %s: %v", host, err)
		return nil, err
	}
	v.cache.Set(key, bundle, v.cfg.AccessTTL)
	return bundle, nil
}

// resolveSession loads a resource session by raw cookie token through the
// cache. The store validates the token digest and expiry on a miss.
func (v *Verifier) resolveSession(ctx context.Context, token string) *models.ResourceSession {
	key := cache.Key("session", token)
	if cached, ok := v.cache.Get(key); ok {
		sess, _ := cached.(*models.ResourceSession)
		return sess
	}

	sess, err := v.store.SessionByToken(ctx, token)
	if err != nil {
		v.log.Warn("session lookup failed: %v", err)
		return nil
	}
	v.cache.Set(key, sess, v.cfg.AccessTTL)
	return sess
}

// redirectURL builds the login redirect for deny cases, preferring the
// org's branded base when its tier enables one.
func (v *Verifier) redirectURL(ctx context.Context, bundle *ResourceBundle, originalURL string) string {
	path := "/auth/resource/" + bundle.Resource.GUID + "?redirect=" + url.QueryEscape(originalURL)
	if v.features != nil {
		if base, ok := v.features.BrandedRedirectBase(ctx, bundle.Resource.OrgID); ok && base != "" {
			return strings.TrimSuffix(base, "/") + path
		}
	}
	return path
}

func tokenActor(token *models.ResourceAccessToken) string {
	if token.Title != "" {
		return token.Title
	}
	return token.TokenID
}

// auditSensitiveHeaders are never persisted in the audit trail.
var auditSensitiveHeaders = []string{"Authorization", "Cookie"}

func (v *Verifier) recordAudit(req *Request, bundle *ResourceBundle, result *Result, actor string, clientIP string) {
	if v.audit == nil {
		return
	}

	entry := models.AuditLogEntry{
		Timestamp:   time.Now(),
		Allowed:     result.Valid,
		Reason:      result.Reason,
		Actor:       actor,
		ClientIP:    clientIP,
		Host:        req.Host,
		Path:        req.Path,
		Method:      req.Method,
		Scheme:      req.Scheme,
		TLS:         req.TLS,
		OriginalURL: req.OriginalRequestURL,
	}
	if bundle != nil {
		entry.OrgID = bundle.Resource.OrgID
		entry.ResourceID = bundle.Resource.ID
	}
	if actor == "" && result.User != nil {
		entry.Actor = result.User.Username
	}
	if v.geo != nil && clientIP != "" {
		// Best effort; an unknown location stays empty.
		if code, ok := v.geo.LookupCountry(context.Background(), clientIP); ok {
			entry.Location = code
		}
	}

	headers := make(map[string]string, len(req.Headers))
	for k, val := range req.Headers {
		headers[k] = val
	}
	for _, name := range auditSensitiveHeaders {
		for k := range headers {
			if strings.EqualFold(k, name) {
				delete(headers, k)
			}
		}
	}
	delete(headers, v.cfg.TokenSecretHeader)

	if data, err := utils.MapToJSON(headers); err == nil {
		entry.Headers = data
	}
	if data, err := utils.MapToJSON(req.Query); err == nil {
		entry.Query = data
	}

	v.audit.Record(entry)
}
