// Package store provides local persistence for session snapshots and the
// search page cache.
//
// Keys follow the convention "/{kind}/{name}", so one prefix scan lists
// every object of a kind.
package store

import (
	"fmt"
)

// Store is the persistence interface used by history and the search tools.
type Store interface {
	// Create stores a new object at the given key.
	// Returns ErrAlreadyExists if the key already exists.
	Create(key string, value interface{}) error

	// Put stores value at key, replacing any existing object.
	Put(key string, value interface{}) error

	// Get retrieves the object stored at key and deserialises it into target.
	// Returns ErrNotFound if the key does not exist.
	Get(key string, target interface{}) error

	// Update replaces the object at the given key.
	// Returns ErrNotFound if the key does not exist.
	Update(key string, value interface{}) error

	// Delete removes the object at the given key.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns every object whose key starts with prefix, in key order.
	// factory is called once per result to create a zero-value pointer that
	// the stored JSON is unmarshalled into.
	List(prefix string, factory func() interface{}) ([]interface{}, error)

	// Close releases the database file handle.
	Close() error
}

// Common sentinel errors.
var (
	ErrAlreadyExists = fmt.Errorf("key already exists")
	ErrNotFound      = fmt.Errorf("key not found")
)

// Object kinds.
const (
	KindSession   = "session"
	KindSearchHit = "search"
	KindMeta      = "meta"
)

// Key builds a canonical store key.
//
//	Key("session", "3f1c...")
//	=> "/session/3f1c..."
func Key(kind, name string) string {
	return fmt.Sprintf("/%s/%s", kind, name)
}

// Prefix returns the scan prefix for every object of kind.
func Prefix(kind string) string {
	return "/" + kind + "/"
}
