package tokens

import (
	"crypto/rand"
	"encoding/base64"
)

// FingerprintBytes es la entropía del secreto de un fingerprint.
// 32 bytes → 43 caracteres base64url, imposible de adivinar por fuerza bruta.
const FingerprintBytes = 32

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateFingerprint genera el valor secreto de un fingerprint nuevo.
func GenerateFingerprint() (string, error) {
	return GenerateOpaqueToken(FingerprintBytes)
}
