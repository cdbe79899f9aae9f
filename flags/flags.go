// Package flags defines the persisted key-value store the session layer
// uses for durable markers such as the biometric re-entry flag and the
// last signed-in email. Values survive process restarts.
package flags

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set creates or replaces the value for key.
	Set(key, value string) error
	// Remove deletes the value for key. Removing an absent key is not
	// an error.
	Remove(key string) error
}
