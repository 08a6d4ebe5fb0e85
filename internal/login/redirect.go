package login

import "strings"

// BuildRedirectURL arma la URL de retorno al provider con el token adjunto.
// URL configurada en blanco → string vacío (el caller decide si es error).
// Se recortan "/", "?" y "&" finales y se elige "?" o "&" según si la URL
// ya trae query string. El token es URL-safe por construcción (JWT compacto),
// no se re-encodea.
func BuildRedirectURL(loginRedirectURL, param, token string) string {
	u := strings.TrimSpace(loginRedirectURL)
	u = strings.TrimRight(u, " /?&")
	if u == "" {
		return ""
	}

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + param + "=" + token
}
