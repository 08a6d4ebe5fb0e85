package cache

// FingerprintKey es la clave bajo la que se cachea el provider resuelto
// por un secreto de fingerprint.
func FingerprintKey(secret string) string { return "fp:" + secret }
