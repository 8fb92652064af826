package repository

// KVStore is the durable key-value persistence port shared by the sync
// engine (cache, queue, last-sync map) and anything else that serializes
// state as JSON. Values must round-trip byte-for-byte.
type KVStore interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
