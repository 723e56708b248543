package models

import (
	"time"
)

// Base contains common columns for all tables
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RuleAction is what a matching rule does to the request.
type RuleAction string

const (
	RuleActionAccept RuleAction = "ACCEPT"
	RuleActionDrop   RuleAction = "DROP"
	RuleActionPass   RuleAction = "PASS"
)

// RuleMatch selects which request attribute a rule is tested against.
type RuleMatch string

const (
	RuleMatchCIDR  RuleMatch = "CIDR"
	RuleMatchIP    RuleMatch = "IP"
	RuleMatchPath  RuleMatch = "PATH"
	RuleMatchGeoIP RuleMatch = "GEOIP"
	RuleMatchASN   RuleMatch = "ASN"

	// RuleMatchCountry is the historical name of GEOIP. Rules written by
	// older edge nodes still carry it and are treated as GEOIP.
	RuleMatchCountry RuleMatch = "COUNTRY"
)

// IsValidRuleAction checks if a given action is valid
func IsValidRuleAction(action RuleAction) bool {
	switch action {
	case RuleActionAccept, RuleActionDrop, RuleActionPass:
		return true
	default:
		return false
	}
}

// IsValidRuleMatch checks if a given match kind is valid
func IsValidRuleMatch(match RuleMatch) bool {
	switch match {
	case RuleMatchCIDR, RuleMatchIP, RuleMatchPath, RuleMatchGeoIP, RuleMatchASN, RuleMatchCountry:
		return true
	default:
		return false
	}
}
