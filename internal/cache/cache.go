package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores byte payloads with a time-to-live
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SourceKey derives the cache key of a remote source document.
// The input encoding is part of the key since it changes the decoded text.
func SourceKey(rawURL, encoding string) string {
	hash := sha256.Sum256([]byte(rawURL + "\x00" + strings.ToLower(encoding)))
	return "rulinstat:source:v1:" + hex.EncodeToString(hash[:])
}

// TableKey derives the cache key of a rendered dashboard table
func TableKey(name string) string {
	return "rulinstat:table:v1:" + name
}
