package geoip

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternseek/ecommerce/pkg/logger"
)

type fakeReader struct {
	byIP  map[string]string
	err   error
	calls int
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	record := &geoip2.Country{}
	record.Country.IsoCode = f.byIP[ip.String()]
	return record, nil
}

func TestCountryForIP(t *testing.T) {
	reader := &fakeReader{byIP: map[string]string{
		"81.2.69.160":  "GB",
		"2.152.0.1":    "es",
		"203.0.113.10": "",
	}}
	loc, err := NewLocator(reader, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "GB", loc.CountryForIP(ctx, "81.2.69.160"))
	assert.Equal(t, "ES", loc.CountryForIP(ctx, " 2.152.0.1 "))
	assert.Equal(t, "", loc.CountryForIP(ctx, "203.0.113.10"))
	assert.Equal(t, "", loc.CountryForIP(ctx, "not-an-ip"))
}

func TestCountryForIPSkipsPrivateRanges(t *testing.T) {
	reader := &fakeReader{}
	loc, err := NewLocator(reader, logger.Nop())
	require.NoError(t, err)

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "0.0.0.0"} {
		assert.Equal(t, "", loc.CountryForIP(context.Background(), ip), ip)
	}
	assert.Equal(t, 0, reader.calls)
}

func TestCountryForIPLookupErrorIsSilent(t *testing.T) {
	loc, err := NewLocator(&fakeReader{err: errors.New("corrupt database")}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "", loc.CountryForIP(context.Background(), "81.2.69.160"))
}

func TestNilLocator(t *testing.T) {
	var loc *Locator
	assert.Equal(t, "", loc.CountryForIP(context.Background(), "81.2.69.160"))
	assert.NoError(t, loc.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", logger.Nop())
	assert.Error(t, err)
	_, err = Open("/nonexistent/GeoLite2-Country.mmdb", logger.Nop())
	assert.Error(t, err)
}
