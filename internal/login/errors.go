package login

import "errors"

// Taxonomía de errores del handoff. El service retorna siempre uno de estos;
// la capa HTTP los mapea a status y mensaje en un solo lugar.
var (
	// ErrNotAuthorized: instant login sin sesión en el broker.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrUserNotFound: credenciales inválidas en el email login, o el user id
	// del challenge no resuelve.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserBlocked: el usuario resuelto está bloqueado.
	ErrUserBlocked = errors.New("user blocked")

	// ErrProviderNotFound: provider desconocido o inactivo al emitir.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderUnavailable: provider existe pero tiene el login deshabilitado.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTokenProviderNotFound: el fingerprint presentado no resuelve a
	// ningún provider activo.
	ErrTokenProviderNotFound = errors.New("token provider not found")

	// ErrTokenProviderNotAllowed: el provider resuelto tiene el login
	// deshabilitado (chequeado de nuevo al momento del challenge).
	ErrTokenProviderNotAllowed = errors.New("token provider not allowed")

	// ErrTokenChallengeFailed: cualquier falla criptográfica, estructural o
	// de completitud de claims. Grueso a propósito: no filtra qué chequeo falló.
	ErrTokenChallengeFailed = errors.New("token challenge failed")

	// ErrAccessDenied: el provider_id embebido en el token no coincide con el
	// provider resuelto por el fingerprint.
	ErrAccessDenied = errors.New("access denied")

	// ErrUndefined: el store reportó cero filas afectadas en un upsert que
	// debía afectar una.
	ErrUndefined = errors.New("undefined error")
)
