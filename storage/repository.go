// Package storage provides the document repository backing the calendar
// service: sealed records addressed by (scope, recordType, recordID),
// where the scope is usually an account ID.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrScopeNotFound is returned when the scope has no records at all.
	ErrScopeNotFound = errors.New("scope not found")
)

// Repository defines the interface for sealed record storage.
type Repository interface {
	Put(scope string, recordType string, recordID string, envelope *Envelope) error
	Get(scope string, recordType string, recordID string) (*Envelope, error)
	List(scope string, recordType string) ([]string, error)
	Delete(scope string, recordType string, recordID string) error
}
