package token

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Audiencia fija de los tokens de sesión del broker. Separada de la del
// handoff para que un token de sesión nunca valide como handoff ni viceversa.
const sessionAudience = "linkpass:session"

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims identifica al usuario autenticado en el broker.
type SessionClaims struct {
	UserID string `json:"id"`
	jwtv5.RegisteredClaims
}

// Sessions emite y valida tokens de sesión del broker (instant login).
type Sessions struct {
	secret []byte
	iss    string
	ttl    time.Duration
}

func NewSessions(secret []byte, iss string, ttl time.Duration) *Sessions {
	return &Sessions{secret: secret, iss: iss, ttl: ttl}
}

func (s *Sessions) Issue(userID string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.iss,
			Audience:  jwtv5.ClaimStrings{sessionAudience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida el token de sesión y devuelve el user id.
func (s *Sessions) Parse(token string) (string, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return s.secret, nil }

	tok, err := jwtv5.ParseWithClaims(token, &SessionClaims{}, keyfunc,
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuer(s.iss),
		jwtv5.WithAudience(sessionAudience),
	)
	if err != nil || !tok.Valid {
		return "", ErrInvalidSession
	}
	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return "", ErrInvalidSession
	}
	return claims.UserID, nil
}
