// Package auth mints and verifies the HS256 bearer tokens used by back-office
// tools.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/patternseek/ecommerce/pkg/enums"
)

// AdminTokenPayload captures the data available when minting a token.
type AdminTokenPayload struct {
	Subject string
	Role    enums.AdminRole
	JTI     string
}

// AdminClaims is the typed JWT presented by back-office tools.
type AdminClaims struct {
	Role enums.AdminRole `json:"role"`
	jwt.RegisteredClaims
}
