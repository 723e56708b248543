package geo

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"

	console "gatecheck/internal/utils/logger"
)

var log = console.New("GeoIP")

// Resolver answers country and ASN lookups for client IPs. Lookups are
// best-effort: a false return means unknown, never an error.
type Resolver interface {
	LookupCountry(ctx context.Context, ip string) (string, bool)
	LookupASN(ctx context.Context, ip string) (uint, bool)
}

// MaxMind resolves against local MaxMind mmdb files. Either reader may be
// nil when the corresponding database is not configured; its lookups then
// report unknown.
type MaxMind struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// OpenMaxMind opens the configured mmdb files. Empty paths are skipped so a
// deployment without GeoIP rules needs no databases.
func OpenMaxMind(countryPath, asnPath string) (*MaxMind, error) {
	m := &MaxMind{}

	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, log.Error("Failed to open country database", err)
		}
		m.country = r
		log.Success("Opened country database %s", countryPath)
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			m.Close()
			return nil, log.Error("Failed to open ASN database", err)
		}
		m.asn = r
		log.Success("Opened ASN database %s", asnPath)
	}
	return m, nil
}

func (m *MaxMind) LookupCountry(ctx context.Context, ip string) (string, bool) {
	if m.country == nil {
		return "", false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", false
	}
	record, err := m.country.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

func (m *MaxMind) LookupASN(ctx context.Context, ip string) (uint, bool) {
	if m.asn == nil {
		return 0, false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, false
	}
	record, err := m.asn.ASN(parsed)
	if err != nil || record.AutonomousSystemNumber == 0 {
		return 0, false
	}
	return record.AutonomousSystemNumber, true
}

func (m *MaxMind) Close() {
	if m.country != nil {
		m.country.Close()
	}
	if m.asn != nil {
		m.asn.Close()
	}
}
