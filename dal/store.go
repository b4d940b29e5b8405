package dal

import "time"

// IStore is the minimal key-value contract the service needs from its
// backing store: followers, actor keys and retry-queue entries all live
// behind it. A zero ttl means the entry does not expire.
type IStore interface {
	// Get returns nil with no error when the key is absent or expired.
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	ListByPrefix(prefix string) ([]string, error)
}
