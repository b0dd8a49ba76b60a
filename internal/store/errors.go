package store

import "errors"

var (
	ErrChecksumMismatch = errors.New("source checksum does not match first ingest")
	ErrDuplicateRun     = errors.New("run id already exists")
	ErrRunNotFound      = errors.New("run not found")
	ErrSourceNotFound   = errors.New("source not found")
	ErrInvalidMode      = errors.New("invalid remaining-work mode")
	ErrReadOnly         = errors.New("store is not writable")
)
