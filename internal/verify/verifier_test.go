package verify

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gatecheck/internal/cache"
	"gatecheck/internal/models"
)

func testRequest() *Request {
	return &Request{
		Sessions:           map[string]string{},
		Headers:            map[string]string{},
		Query:              map[string]string{},
		OriginalRequestURL: "https://app.example.com/dash",
		Scheme:             "https",
		Host:               "app.example.com",
		Path:               "/dash",
		Method:             "GET",
		TLS:                true,
		RequestIP:          "203.0.113.7:51234",
	}
}

func testBundle() *ResourceBundle {
	return &ResourceBundle{
		Resource: models.Resource{
			Base:       models.Base{ID: 7},
			GUID:       "3f1c9c1e-guid",
			OrgID:      3,
			Name:       "dashboard",
			FullDomain: "app.example.com",
		},
		Org: &models.Org{Base: models.Base{ID: 3}, Name: "acme"},
	}
}

func storeWithBundle(bundle *ResourceBundle) *fakeStore {
	return &fakeStore{
		resourceByDomain: func(domain string) (*ResourceBundle, error) {
			if bundle != nil && domain == bundle.Resource.FullDomain {
				return bundle, nil
			}
			return nil, nil
		},
	}
}

func verifyOne(t *testing.T, v *Verifier, req *Request) *Result {
	t.Helper()
	result, err := v.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result == nil {
		t.Fatal("Verify returned nil result")
	}
	return result
}

func assertDecision(t *testing.T, result *Result, valid bool, reason int) {
	t.Helper()
	if result.Valid != valid || result.Reason != reason {
		t.Errorf("got valid=%v reason=%d, want valid=%v reason=%d",
			result.Valid, result.Reason, valid, reason)
	}
}

func TestVerifyResourceNotFound(t *testing.T) {
	audit := &fakeAudit{}
	v := newTestVerifier(&fakeStore{}, &fakeGeo{}, audit)

	result := verifyOne(t, v, testRequest())
	assertDecision(t, result, false, ReasonResourceNotFound)
	if result.RedirectURL != "" {
		t.Errorf("unknown host must not redirect, got %q", result.RedirectURL)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(audit.entries))
	}
	if audit.entries[0].Reason != ReasonResourceNotFound {
		t.Errorf("audit reason = %d, want %d", audit.entries[0].Reason, ReasonResourceNotFound)
	}
}

func TestVerifyBlockedResource(t *testing.T) {
	bundle := testBundle()
	bundle.Resource.BlockAccess = true
	bundle.Password = &models.ResourcePassword{}
	v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

	result := verifyOne(t, v, testRequest())
	assertDecision(t, result, false, ReasonResourceBlocked)
	if result.RedirectURL != "" {
		t.Errorf("blocked resource must not redirect, got %q", result.RedirectURL)
	}
}

func TestVerifyOpenResource(t *testing.T) {
	v := newTestVerifier(storeWithBundle(testBundle()), &fakeGeo{}, &fakeAudit{})

	result := verifyOne(t, v, testRequest())
	assertDecision(t, result, true, ReasonNoAuthConfigured)
}

func TestVerifyRuleVerdicts(t *testing.T) {
	tests := []struct {
		name   string
		action models.RuleAction
		valid  bool
		reason int
	}{
		{"accept short-circuits auth", models.RuleActionAccept, true, ReasonRuleAccept},
		{"drop denies without redirect", models.RuleActionDrop, false, ReasonRuleDrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := testBundle()
			bundle.Resource.ApplyRules = true
			bundle.Password = &models.ResourcePassword{}
			st := storeWithBundle(bundle)
			st.rulesForResource = func(uint) ([]models.ResourceRule, error) {
				return []models.ResourceRule{
					rule(1, tt.action, models.RuleMatchCIDR, "0.0.0.0/0"),
				}, nil
			}
			v := newTestVerifier(st, &fakeGeo{}, &fakeAudit{})

			result := verifyOne(t, v, testRequest())
			assertDecision(t, result, tt.valid, tt.reason)
			if !tt.valid && result.RedirectURL != "" {
				t.Errorf("rule drop must not redirect, got %q", result.RedirectURL)
			}
		})
	}
}

func TestVerifyNoSessionsRedirects(t *testing.T) {
	bundle := testBundle()
	bundle.Password = &models.ResourcePassword{}
	v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

	req := testRequest()
	result := verifyOne(t, v, req)
	assertDecision(t, result, false, ReasonNoSessions)

	want := "/auth/resource/" + bundle.Resource.GUID + "?redirect=" + url.QueryEscape(req.OriginalRequestURL)
	if result.RedirectURL != want {
		t.Errorf("redirect = %q, want %q", result.RedirectURL, want)
	}
}

func TestVerifyBrandedRedirect(t *testing.T) {
	bundle := testBundle()
	bundle.Password = &models.ResourcePassword{}
	st := storeWithBundle(bundle)
	c := cache.New()
	v := New(
		st, c,
		NewRuleEngine(st, c, &fakeGeo{}, time.Second),
		&fakePolicy{}, &fakeGeo{}, &fakeAudit{},
		&fakeFeatures{base: "https://login.acme.io/", ok: true},
		Config{AccessTTL: time.Second},
	)

	result := verifyOne(t, v, testRequest())
	assertDecision(t, result, false, ReasonNoSessions)
	wantPrefix := "https://login.acme.io/auth/resource/"
	if len(result.RedirectURL) < len(wantPrefix) || result.RedirectURL[:len(wantPrefix)] != wantPrefix {
		t.Errorf("redirect = %q, want prefix %q", result.RedirectURL, wantPrefix)
	}
}

func TestVerifyAccessToken(t *testing.T) {
	bundle := testBundle()
	bundle.Password = &models.ResourcePassword{}
	st := storeWithBundle(bundle)
	st.validateAccessToken = func(tokenID, secret string, resourceID uint) (*models.ResourceAccessToken, error) {
		if tokenID == "tok123" && secret == "s3cret" && resourceID == bundle.Resource.ID {
			return &models.ResourceAccessToken{TokenID: "tok123", Title: "ci-deploy"}, nil
		}
		return nil, nil
	}
	audit := &fakeAudit{}
	v := newTestVerifier(st, &fakeGeo{}, audit)

	t.Run("header pair", func(t *testing.T) {
		req := testRequest()
		req.Headers["P-Access-Token-Id"] = "tok123"
		req.Headers["P-Access-Token"] = "s3cret"

		result := verifyOne(t, v, req)
		assertDecision(t, result, true, ReasonValidAccessToken)
	})

	t.Run("query parameter", func(t *testing.T) {
		req := testRequest()
		req.Query["p_token"] = "tok123.s3cret"

		result := verifyOne(t, v, req)
		assertDecision(t, result, true, ReasonValidAccessToken)
	})

	t.Run("wrong secret falls through", func(t *testing.T) {
		req := testRequest()
		req.Headers["P-Access-Token-Id"] = "tok123"
		req.Headers["P-Access-Token"] = "wrong"

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoSessions)
	})

	// The token's title identifies the actor in the audit trail.
	if audit.entries[0].Actor != "ci-deploy" {
		t.Errorf("audit actor = %q, want %q", audit.entries[0].Actor, "ci-deploy")
	}
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestVerifyHeaderAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("svc:hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	t.Run("valid credential", func(t *testing.T) {
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{CredentialHash: string(hash)}
		bundle.Password = &models.ResourcePassword{}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Headers["Authorization"] = basicHeader("svc", "hunter2")

		result := verifyOne(t, v, req)
		assertDecision(t, result, true, ReasonValidHeaderAuth)
	})

	t.Run("sole surface denies immediately", func(t *testing.T) {
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{CredentialHash: string(hash)}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Headers["Authorization"] = basicHeader("svc", "wrong")
		req.Sessions["p_session"] = "whatever"

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoAuthMethods)
	})

	t.Run("compatibility mode challenges", func(t *testing.T) {
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{
			CredentialHash:        string(hash),
			ExtendedCompatibility: true,
		}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		result := verifyOne(t, v, testRequest())
		assertDecision(t, result, false, ReasonNoAuthMethods)
		if !result.HeaderAuthChallenged {
			t.Error("expected a header auth challenge when no credential was presented")
		}
	})

	t.Run("compatibility mode challenges cookie-less clients", func(t *testing.T) {
		// WebDAV-style agents never carry session cookies; the challenge
		// must win over the plain no-sessions deny.
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{
			CredentialHash:        string(hash),
			ExtendedCompatibility: true,
		}
		bundle.Password = &models.ResourcePassword{}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Sessions = nil

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoAuthMethods)
		if !result.HeaderAuthChallenged {
			t.Error("cookie-less request must still receive a header auth challenge")
		}
	})

	t.Run("compatibility mode challenges past stale cookies", func(t *testing.T) {
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{
			CredentialHash:        string(hash),
			ExtendedCompatibility: true,
		}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Sessions["p_session"] = "stale-or-unknown"

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoAuthMethods)
		if !result.HeaderAuthChallenged {
			t.Error("a dead session cookie must not suppress the challenge")
		}
	})

	t.Run("compatibility mode with bad credential does not re-challenge", func(t *testing.T) {
		bundle := testBundle()
		bundle.HeaderAuth = &models.ResourceHeaderAuth{
			CredentialHash:        string(hash),
			ExtendedCompatibility: true,
		}
		v := newTestVerifier(storeWithBundle(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Headers["Authorization"] = basicHeader("svc", "wrong")

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoSessions)
		if result.HeaderAuthChallenged {
			t.Error("a presented credential must not trigger another challenge")
		}
	})
}

func sessionStore(bundle *ResourceBundle, token string, sess *models.ResourceSession) *fakeStore {
	st := storeWithBundle(bundle)
	st.sessionByToken = func(got string) (*models.ResourceSession, error) {
		if got == token {
			return sess, nil
		}
		return nil, nil
	}
	return st
}

func TestVerifySessionGrants(t *testing.T) {
	tests := []struct {
		name    string
		surface func(*ResourceBundle)
		session models.ResourceSession
		valid   bool
		reason  int
	}{
		{
			name:    "pincode grant on pincode resource",
			surface: func(b *ResourceBundle) { b.Pincode = &models.ResourcePincode{} },
			session: models.ResourceSession{ResourceID: 7, PincodeID: uintPtr(1)},
			valid:   true,
			reason:  ReasonValidPincode,
		},
		{
			name:    "pincode grant on password-only resource falls through",
			surface: func(b *ResourceBundle) { b.Password = &models.ResourcePassword{} },
			session: models.ResourceSession{ResourceID: 7, PincodeID: uintPtr(1)},
			valid:   false,
			reason:  ReasonNoAuthMethods,
		},
		{
			name:    "password grant",
			surface: func(b *ResourceBundle) { b.Password = &models.ResourcePassword{} },
			session: models.ResourceSession{ResourceID: 7, PasswordID: uintPtr(2)},
			valid:   true,
			reason:  ReasonValidPassword,
		},
		{
			name:    "whitelist grant",
			surface: func(b *ResourceBundle) { b.Resource.EmailWhitelistEnabled = true },
			session: models.ResourceSession{ResourceID: 7, WhitelistID: uintPtr(3)},
			valid:   true,
			reason:  ReasonValidEmail,
		},
		{
			name:    "token-derived session valid regardless of surfaces",
			surface: func(b *ResourceBundle) { b.Password = &models.ResourcePassword{} },
			session: models.ResourceSession{ResourceID: 7, AccessTokenID: uintPtr(4)},
			valid:   true,
			reason:  ReasonValidAccessToken,
		},
		{
			name:    "request token never grants",
			surface: func(b *ResourceBundle) { b.Pincode = &models.ResourcePincode{} },
			session: models.ResourceSession{ResourceID: 7, IsRequestToken: true, PincodeID: uintPtr(1)},
			valid:   false,
			reason:  ReasonRequestToken,
		},
		{
			name:    "session for another resource ignored",
			surface: func(b *ResourceBundle) { b.Pincode = &models.ResourcePincode{} },
			session: models.ResourceSession{ResourceID: 99, PincodeID: uintPtr(1)},
			valid:   false,
			reason:  ReasonNoAuthMethods,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := testBundle()
			tt.surface(bundle)
			sess := tt.session
			v := newTestVerifier(sessionStore(bundle, "cookie-token", &sess), &fakeGeo{}, &fakeAudit{})

			req := testRequest()
			req.Sessions["p_session"] = "cookie-token"

			result := verifyOne(t, v, req)
			assertDecision(t, result, tt.valid, tt.reason)
		})
	}
}

func TestVerifyCookieDisambiguation(t *testing.T) {
	bundle := testBundle()
	bundle.Pincode = &models.ResourcePincode{}

	var requested []string
	st := storeWithBundle(bundle)
	st.sessionByToken = func(token string) (*models.ResourceSession, error) {
		requested = append(requested, token)
		if token == "newest" {
			return &models.ResourceSession{ResourceID: 7, PincodeID: uintPtr(1)}, nil
		}
		return nil, nil
	}
	v := newTestVerifier(st, &fakeGeo{}, &fakeAudit{})

	req := testRequest()
	req.Sessions["p_session.100"] = "older"
	req.Sessions["p_session.200"] = "newest"
	req.Sessions["p_session"] = "oldest"
	req.Sessions["other_cookie.900"] = "noise"

	result := verifyOne(t, v, req)
	assertDecision(t, result, true, ReasonValidPincode)
	if len(requested) != 1 || requested[0] != "newest" {
		t.Errorf("expected a single lookup of the newest cookie, got %v", requested)
	}
}

func TestVerifySSLCookieName(t *testing.T) {
	bundle := testBundle()
	bundle.Resource.SSL = true
	bundle.Pincode = &models.ResourcePincode{}
	v := newTestVerifier(sessionStore(bundle, "secure-token",
		&models.ResourceSession{ResourceID: 7, PincodeID: uintPtr(1)}), &fakeGeo{}, &fakeAudit{})

	req := testRequest()
	req.Sessions["p_session"] = "plain-token"
	req.Sessions["p_session_s"] = "secure-token"

	result := verifyOne(t, v, req)
	assertDecision(t, result, true, ReasonValidPincode)
}

func TestVerifySessionLengthPolicy(t *testing.T) {
	bundle := testBundle()
	bundle.Pincode = &models.ResourcePincode{}
	st := sessionStore(bundle, "cookie-token",
		&models.ResourceSession{ResourceID: 7, PincodeID: uintPtr(1)})
	c := cache.New()
	v := New(
		st, c,
		NewRuleEngine(st, c, &fakeGeo{}, time.Second),
		&fakePolicy{sessionLengthErr: errors.New("session exceeds org cap")},
		&fakeGeo{}, &fakeAudit{}, &fakeFeatures{},
		Config{AccessTTL: time.Second},
	)

	req := testRequest()
	req.Sessions["p_session"] = "cookie-token"

	result := verifyOne(t, v, req)
	assertDecision(t, result, false, ReasonNoAuthMethods)
}

func TestVerifySSOGrant(t *testing.T) {
	newSSOStore := func(bundle *ResourceBundle) *fakeStore {
		st := sessionStore(bundle, "cookie-token",
			&models.ResourceSession{ResourceID: 7, UserSessionID: uintPtr(42)})
		st.userForSession = func(id uint) (*models.User, error) {
			if id == 42 {
				return &models.User{
					Base:          models.Base{ID: 9},
					Username:      "alice",
					Email:         "alice@acme.test",
					Name:          "Alice",
					EmailVerified: true,
				}, nil
			}
			return nil, nil
		}
		st.roleForUser = func(userID, orgID uint) (*models.Role, error) {
			if userID == 9 && orgID == 3 {
				return &models.Role{Base: models.Base{ID: 5}, OrgID: 3, Name: "member"}, nil
			}
			return nil, nil
		}
		return st
	}

	t.Run("role grant allows", func(t *testing.T) {
		bundle := testBundle()
		bundle.Resource.SSO = true
		st := newSSOStore(bundle)
		st.roleHasResource = func(roleID, resourceID uint) (bool, error) {
			return roleID == 5 && resourceID == 7, nil
		}
		audit := &fakeAudit{}
		v := newTestVerifier(st, &fakeGeo{}, audit)

		req := testRequest()
		req.Sessions["p_session"] = "cookie-token"

		result := verifyOne(t, v, req)
		assertDecision(t, result, true, ReasonValidSSO)
		if result.User == nil || result.User.Username != "alice" || result.User.Role != "member" {
			t.Errorf("unexpected user data: %+v", result.User)
		}
		if audit.entries[0].Actor != "alice" {
			t.Errorf("audit actor = %q, want alice", audit.entries[0].Actor)
		}
	})

	t.Run("direct user grant as fallback", func(t *testing.T) {
		bundle := testBundle()
		bundle.Resource.SSO = true
		st := newSSOStore(bundle)
		st.userHasResource = func(userID, resourceID uint) (bool, error) {
			return userID == 9 && resourceID == 7, nil
		}
		v := newTestVerifier(st, &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Sessions["p_session"] = "cookie-token"

		result := verifyOne(t, v, req)
		assertDecision(t, result, true, ReasonValidSSO)
	})

	t.Run("no grant denies", func(t *testing.T) {
		bundle := testBundle()
		bundle.Resource.SSO = true
		v := newTestVerifier(newSSOStore(bundle), &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Sessions["p_session"] = "cookie-token"

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoAuthMethods)
	})

	t.Run("SSO disabled on resource ignores user session", func(t *testing.T) {
		bundle := testBundle()
		bundle.Password = &models.ResourcePassword{}
		st := newSSOStore(bundle)
		st.roleHasResource = func(uint, uint) (bool, error) { return true, nil }
		v := newTestVerifier(st, &fakeGeo{}, &fakeAudit{})

		req := testRequest()
		req.Sessions["p_session"] = "cookie-token"

		result := verifyOne(t, v, req)
		assertDecision(t, result, false, ReasonNoAuthMethods)
	})
}

func TestVerifyAuditEntryPerDecision(t *testing.T) {
	bundle := testBundle()
	bundle.Password = &models.ResourcePassword{}
	st := storeWithBundle(bundle)
	audit := &fakeAudit{}
	v := newTestVerifier(st, &fakeGeo{country: "DE", countryKnown: true}, audit)

	req := testRequest()
	req.Headers["Authorization"] = "Bearer secret-thing"
	req.Headers["User-Agent"] = "curl/8"
	verifyOne(t, v, req)

	if len(audit.entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.ResourceID != 7 || entry.OrgID != 3 {
		t.Errorf("entry resource/org = %d/%d, want 7/3", entry.ResourceID, entry.OrgID)
	}
	if entry.ClientIP != "203.0.113.7" {
		t.Errorf("entry client IP = %q, want port stripped", entry.ClientIP)
	}
	if entry.Location != "DE" {
		t.Errorf("entry location = %q, want DE", entry.Location)
	}
	headers := string(entry.Headers)
	if headers == "" {
		t.Fatal("expected headers to be persisted")
	}
	if strings.Contains(headers, "secret-thing") {
		t.Error("Authorization header leaked into the audit trail")
	}
	if !strings.Contains(headers, "curl/8") {
		t.Error("benign headers should be persisted")
	}
}
