package verify

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"gatecheck/internal/cache"
	"gatecheck/internal/models"
	"gatecheck/internal/utils/logger"
)

// RuleVerdict is the outcome of evaluating a resource's rule set.
type RuleVerdict int

const (
	VerdictNone RuleVerdict = iota // no rule matched
	VerdictAccept
	VerdictDrop
	VerdictPass // a PASS rule matched explicitly; same fallthrough as none
)

func (v RuleVerdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictDrop:
		return "drop"
	case VerdictPass:
		return "pass"
	default:
		return "none"
	}
}

// RuleEngine loads a resource's ordered rule set through the cache and
// evaluates it against request attributes. Enabled rules are evaluated in
// ascending priority order and the first match wins.
type RuleEngine struct {
	store Store
	cache *cache.Cache
	geo   GeoResolver
	ttl   time.Duration
	log   *logger.Logger
}

func NewRuleEngine(store Store, c *cache.Cache, geo GeoResolver, ttl time.Duration) *RuleEngine {
	return &RuleEngine{
		store: store,
		cache: c,
		geo:   geo,
		ttl:   ttl,
		log:   logger.New("RuleEngine"),
	}
}

// Evaluate runs the rule set for resourceID against the client IP and path.
// Country and ASN are resolved lazily, only when a rule needs them.
func (e *RuleEngine) Evaluate(ctx context.Context, resourceID uint, clientIP, path string) (RuleVerdict, error) {
	rules, err := e.loadRules(ctx, resourceID)
	if err != nil {
		return VerdictNone, err
	}
	if len(rules) == 0 {
		return VerdictNone, nil
	}

	// Lazy, memoized geo attributes; GeoIP/ASN databases are consulted at
	// most once per evaluation.
	var (
		country       string
		countryKnown  bool
		countryLoaded bool
		asn           uint
		asnKnown      bool
		asnLoaded     bool
	)
	lookupCountry := func() (string, bool) {
		if !countryLoaded {
			countryLoaded = true
			if e.geo != nil && clientIP != "" {
				country, countryKnown = e.geo.LookupCountry(ctx, clientIP)
			}
		}
		return country, countryKnown
	}
	lookupASN := func() (uint, bool) {
		if !asnLoaded {
			asnLoaded = true
			if e.geo != nil && clientIP != "" {
				asn, asnKnown = e.geo.LookupASN(ctx, clientIP)
			}
		}
		return asn, asnKnown
	}

	for _, rule := range rules {
		if !models.IsValidRuleMatch(rule.Match) || !models.IsValidRuleAction(rule.Action) {
			e.log.Warn("skipping malformed rule %d (match %q action %q)", rule.ID, rule.Match, rule.Action)
			continue
		}

		matched := false
		switch rule.Match {
		case models.RuleMatchCIDR:
			matched = cidrContains(rule.Value, clientIP)
		case models.RuleMatchIP:
			matched = ipEqual(rule.Value, clientIP)
		case models.RuleMatchPath:
			matched = path != "" && MatchPath(rule.Value, path)
		case models.RuleMatchGeoIP, models.RuleMatchCountry:
			// COUNTRY is the legacy name for GEOIP kept for older edge
			// nodes; both are one match kind.
			if strings.EqualFold(rule.Value, "ALL") {
				matched = true
			} else if code, ok := lookupCountry(); ok {
				matched = strings.EqualFold(code, rule.Value)
			}
		case models.RuleMatchASN:
			matched = asnMatches(rule.Value, lookupASN)
		}

		if !matched {
			continue
		}

		switch rule.Action {
		case models.RuleActionAccept:
			return VerdictAccept, nil
		case models.RuleActionDrop:
			return VerdictDrop, nil
		case models.RuleActionPass:
			return VerdictPass, nil
		}
	}

	return VerdictNone, nil
}

// loadRules fetches the enabled rules for a resource, priority-sorted,
// through the cache.
func (e *RuleEngine) loadRules(ctx context.Context, resourceID uint) ([]models.ResourceRule, error) {
	key := cache.Key("rules", strconv.FormatUint(uint64(resourceID), 10))
	if v, ok := e.cache.Get(key); ok {
		return v.([]models.ResourceRule), nil
	}

	all, err := e.store.RulesForResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	// Disabled rules are dropped entirely, not just deprioritized.
	rules := make([]models.ResourceRule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	e.cache.Set(key, rules, e.ttl)
	return rules, nil
}

func cidrContains(value, ip string) bool {
	if ip == "" {
		return false
	}
	_, block, err := net.ParseCIDR(value)
	if err != nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return block.Contains(parsed)
}

func ipEqual(value, ip string) bool {
	if ip == "" {
		return false
	}
	a := net.ParseIP(value)
	b := net.ParseIP(ip)
	if a != nil && b != nil {
		return a.Equal(b)
	}
	return value == ip
}

// asnMatches compares a rule value against the resolved AS number. The
// value may be numeric or "AS"-prefixed in any casing; "ALL" and "AS0"
// match every ASN.
func asnMatches(value string, lookup func() (uint, bool)) bool {
	v := strings.TrimSpace(value)
	if strings.EqualFold(v, "ALL") {
		return true
	}
	if len(v) >= 2 && strings.EqualFold(v[:2], "AS") {
		v = v[2:]
	}
	want, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return false
	}
	if want == 0 {
		return true
	}
	got, ok := lookup()
	if !ok {
		return false
	}
	return uint(want) == got
}
