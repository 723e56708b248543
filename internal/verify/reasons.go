package verify

// Reason codes are stable small integers persisted in the audit trail and
// consumed by export tooling. Never renumber; add new codes instead.
const (
	ReasonRuleAccept       = 100 // allowed by rule
	ReasonNoAuthConfigured = 101 // allowed, no auth configured
	ReasonValidAccessToken = 102 // valid access token
	ReasonValidHeaderAuth  = 103 // valid header auth
	ReasonValidPincode     = 104 // valid pincode
	ReasonValidPassword    = 105 // valid password
	ReasonValidEmail       = 106 // valid whitelisted email
	ReasonValidSSO         = 107 // valid SSO session

	ReasonResourceNotFound = 201 // resource not found
	ReasonResourceBlocked  = 202 // resource blocked
	ReasonRuleDrop         = 203 // dropped by rule
	ReasonNoSessions       = 204 // no session cookies presented
	ReasonRequestToken     = 205 // session is a one-time exchange token
	ReasonNoAuthMethods    = 299 // no remaining auth method matched
)

// ReasonText returns the human-readable meaning of a reason code for logs.
func ReasonText(code int) string {
	switch code {
	case ReasonRuleAccept:
		return "allowed by rule"
	case ReasonNoAuthConfigured:
		return "allowed, no auth configured"
	case ReasonValidAccessToken:
		return "valid access token"
	case ReasonValidHeaderAuth:
		return "valid header auth"
	case ReasonValidPincode:
		return "valid pincode"
	case ReasonValidPassword:
		return "valid password"
	case ReasonValidEmail:
		return "valid whitelisted email"
	case ReasonValidSSO:
		return "valid SSO session"
	case ReasonResourceNotFound:
		return "resource not found"
	case ReasonResourceBlocked:
		return "resource blocked"
	case ReasonRuleDrop:
		return "dropped by rule"
	case ReasonNoSessions:
		return "no session cookies presented"
	case ReasonRequestToken:
		return "session is a one-time exchange token"
	case ReasonNoAuthMethods:
		return "no remaining auth method matched"
	default:
		return "unknown"
	}
}
