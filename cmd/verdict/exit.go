package main

import (
	"errors"

	"github.com/JaimeStill/verdict/internal/controller"
	"github.com/JaimeStill/verdict/internal/executor"
	"github.com/JaimeStill/verdict/internal/ingest"
	"github.com/JaimeStill/verdict/internal/lock"
	"github.com/JaimeStill/verdict/internal/store"
)

// Exit codes. Anything not listed exits 1.
const (
	exitFailure   = 1
	exitLockHeld  = 3
	exitIntegrity = 4
	exitRejected  = 5
	exitStorage   = 6
	exitCancelled = 130
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, lock.ErrLockHeld):
		return exitLockHeld
	case errors.Is(err, store.ErrChecksumMismatch),
		errors.Is(err, store.ErrDuplicateRun),
		errors.Is(err, ingest.ErrDuplicateRecordID),
		errors.Is(err, controller.ErrIncomplete):
		return exitIntegrity
	case errors.Is(err, controller.ErrRunCompleted), errors.Is(err, store.ErrRunNotFound):
		return exitRejected
	case errors.Is(err, executor.ErrStorage):
		return exitStorage
	case errors.Is(err, controller.ErrCancelled):
		return exitCancelled
	default:
		return exitFailure
	}
}
