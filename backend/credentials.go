package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is the auth context attached to every backend request. The
// tokens are issued by the identity provider; this client never verifies
// them (that is the backend's job), it only forwards them and can inspect
// the id token's claims locally.
type Credentials struct {
	UserID       string
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// Expired reports whether the id token's exp claim is in the past. Tokens
// that are missing or unparsable report false: the backend is the authority
// and will reject them anyway.
func (c Credentials) Expired(now time.Time) bool {
	claims := c.idClaims()
	if claims == nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

// Subject returns the id token's sub claim, or the empty string when the
// token is missing or unparsable.
func (c Credentials) Subject() string {
	claims := c.idClaims()
	if claims == nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

func (c Credentials) idClaims() jwt.MapClaims {
	if c.IDToken == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.IDToken, claims); err != nil {
		return nil
	}
	return claims
}
