package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressReady(t *testing.T) {
	addr := Address{Line1: "1 High St", PostalCode: "SW1A 1AA", Country: "GB"}
	assert.True(t, addr.Ready())

	addr.PostalCode = "  "
	assert.False(t, addr.Ready())

	assert.False(t, Address{Line1: "x", PostalCode: "y"}.Ready())
}

func TestAddressNormalizeAndString(t *testing.T) {
	line2 := "  Flat 2 "
	addr := Address{
		Line1:      " 1 High St ",
		Line2:      &line2,
		City:       "London",
		PostalCode: "SW1A 1AA ",
		Country:    " gb",
	}.Normalize()

	require.NotNil(t, addr.Line2)
	assert.Equal(t, "Flat 2", *addr.Line2)
	assert.Equal(t, "GB", addr.Country)
	assert.Equal(t, "1 High St, Flat 2, London, SW1A 1AA, GB", addr.String())
}

func TestAddressNormalizeDropsBlankLine2(t *testing.T) {
	blank := "   "
	addr := Address{Line1: "a", Line2: &blank}.Normalize()
	assert.Nil(t, addr.Line2)
}

func TestParseCountry(t *testing.T) {
	got, err := ParseCountry(" es ")
	require.NoError(t, err)
	assert.Equal(t, "ES", got)

	got, err = ParseCountry("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseCountry("XX")
	assert.Error(t, err)

	_, err = ParseCountry("ESP")
	assert.Error(t, err)
}
