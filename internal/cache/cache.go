// Package cache provee una abstracción chica de cache con dos backends:
// memoria (go-cache, para dev/tests) y redis (producción).
package cache

import "time"

type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
