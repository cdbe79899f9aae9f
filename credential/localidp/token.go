package localidp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issueToken mints an HS256 ID token for the account. The signing key
// is opened from its enclave only for the duration of the signing call.
func (p *Provider) issueToken(acct *accountRecord) (string, error) {
	buf, err := p.signingKey.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   acct.ID,
		"email": acct.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(p.tokenTTL).Unix(),
	}
	if acct.DisplayName != "" {
		claims["name"] = acct.DisplayName
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates an ID token previously issued by
// this provider, returning the account ID it was minted for.
func (p *Provider) VerifyToken(tokenString string) (string, error) {
	buf, err := p.signingKey.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	// The parser needs the key material for the whole call; hand it a
	// copy so the buffer can be destroyed on return.
	key := append([]byte(nil), buf.Bytes()...)

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
