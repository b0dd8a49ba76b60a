package storage

import "errors"

var (
	// ErrDisabled indicates no storage connection has been configured.
	ErrDisabled = errors.New("blob storage is not configured")
	// ErrEmptyKey indicates an empty storage key was provided.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey indicates the storage key contains a path traversal segment.
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
)
