// Package geoip resolves client IP addresses to ISO country codes.
package geoip

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/types"
)

// CountryReader is the subset of a GeoIP2/GeoLite2 country database in use.
type CountryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// Locator maps IPs to countries. Lookups never fail the caller: any problem
// leaves the country empty.
type Locator struct {
	reader CountryReader
	closer func() error
	logg   *logger.Logger
}

// Open loads the MaxMind database at path.
func Open(path string, logg *logger.Logger) (*Locator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("geoip database path required")
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}
	loc, err := NewLocator(reader, logg)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	loc.closer = reader.Close
	return loc, nil
}

// NewLocator wraps an already opened reader.
func NewLocator(reader CountryReader, logg *logger.Logger) (*Locator, error) {
	if reader == nil {
		return nil, fmt.Errorf("geoip reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Locator{reader: reader, logg: logg}, nil
}

// CountryForIP returns the ISO country of ip, or "" when it cannot be located.
func (l *Locator) CountryForIP(ctx context.Context, ip string) string {
	if l == nil {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return ""
	}
	record, err := l.reader.Country(parsed)
	if err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "ip", parsed.String()), fmt.Sprintf("geoip lookup failed: %v", err))
		return ""
	}
	code := types.NormalizeCountry(record.Country.IsoCode)
	if !types.IsCountryCode(code) {
		return ""
	}
	return code
}

// Close releases the underlying database.
func (l *Locator) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer()
}
