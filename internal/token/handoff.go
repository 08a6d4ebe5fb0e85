// Package token emite y valida los tokens firmados del handoff de login.
//
// El token es un JWT compacto HS256 con exactamente tres claims de
// identidad ({id, email, provider_id}) más las registradas (iss/aud/nbf/exp).
// Vive 5 minutos y viaja en la URL de redirect hacia el provider; el
// provider lo presenta de vuelta junto con su fingerprint.
package token

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrInvalid cubre cualquier falla criptográfica o estructural del token.
// Es deliberadamente grueso: el caller no debe poder distinguir qué chequeo
// falló (ni firma, ni expiración, ni claims incompletas).
var ErrInvalid = errors.New("invalid handoff token")

// HandoffClaims es el claim set cerrado del token de handoff. Deserializar
// a struct fija hace que el chequeo de completitud sea parte del tipo y no
// un lookup en un mapa abierto.
type HandoffClaims struct {
	UserID     string `json:"id"`
	Email      string `json:"email"`
	ProviderID string `json:"provider_id"`
	jwtv5.RegisteredClaims
}

func (c *HandoffClaims) complete() bool {
	return strings.TrimSpace(c.UserID) != "" &&
		strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.ProviderID) != ""
}

// Issuer firma tokens de handoff con la clave simétrica compartida.
// La clave se inyecta al construir; nunca se lee de estado global.
type Issuer struct {
	secret []byte
	iss    string
	aud    string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, iss, aud string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, iss: iss, aud: aud, ttl: ttl, now: time.Now}
}

// WithClock fija el reloj del issuer (tests).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue firma un token {id, email, provider_id} con nbf=now y exp=now+ttl.
// No tiene efectos secundarios y no falla con entradas no vacías.
func (i *Issuer) Issue(userID, email, providerID string) (string, error) {
	now := i.now().UTC()
	claims := HandoffClaims{
		UserID:     userID,
		Email:      email,
		ProviderID: providerID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.iss,
			Audience:  jwtv5.ClaimStrings{i.aud},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tk.SignedString(i.secret)
}

// Verifier valida tokens de handoff: firma HS256 contra la clave compartida,
// exp obligatorio, nbf honrado, leeway de clock-skew, iss y aud fijos, y las
// tres claims de identidad presentes y no vacías.
type Verifier struct {
	secret []byte
	iss    string
	aud    string
	skew   time.Duration
	now    func() time.Time
}

func NewVerifier(secret []byte, iss, aud string, skew time.Duration) *Verifier {
	return &Verifier{secret: secret, iss: iss, aud: aud, skew: skew, now: time.Now}
}

// WithClock fija el reloj del verifier (tests).
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Parse valida el token y devuelve las claims. Cualquier falla → ErrInvalid.
func (v *Verifier) Parse(token string) (*HandoffClaims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return v.secret, nil }

	tok, err := jwtv5.ParseWithClaims(token, &HandoffClaims{}, keyfunc,
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(v.skew),
		jwtv5.WithIssuer(v.iss),
		jwtv5.WithAudience(v.aud),
		jwtv5.WithTimeFunc(func() time.Time { return v.now() }),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalid
	}

	claims, ok := tok.Claims.(*HandoffClaims)
	if !ok || !claims.complete() {
		// Token estructuralmente válido pero incompleto se trata igual
		// que una falla criptográfica.
		return nil, ErrInvalid
	}
	return claims, nil
}
