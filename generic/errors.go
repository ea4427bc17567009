/*
errors.go - Centralized error types

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Reference errors - A rate or mission id that does not exist
  2. Validation errors - Business rule violations (payroll.ValidationError)
  3. Store errors - Persistence failures, never surfaced raw
  4. Backup errors - Snapshot decoding, concurrent backups

USAGE:
  if errors.Is(err, generic.ErrRateNotFound) {
      // 404
  }

SEE ALSO:
  - payroll/registry.go: Wraps store failures in StoreError
  - backup/snapshot.go: Returns ErrInvalidSnapshot
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound is returned when a referenced rate doesn't exist.
	ErrRateNotFound = errors.New("rate not found")

	// ErrMissionNotFound is returned when a referenced mission doesn't exist.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrPersistence is returned when the backing store fails.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidSnapshot is returned when an import document is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrBackupInProgress is returned when a backup is requested while
	// another one is still running.
	ErrBackupInProgress = errors.New("backup already in progress")

	// ErrNoBackup is returned when a restore finds nothing to restore.
	ErrNoBackup = errors.New("no backup available")

	// ErrInvalidPeriod is returned when a period is malformed (end before
	// start, or a bound that is not a date).
	ErrInvalidPeriod = errors.New("invalid period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StoreError describes a failed persistence operation. It matches
// ErrPersistence with errors.Is and unwraps to the driver error.
type StoreError struct {
	Op  string // e.g. "save_rate", "replace_all"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrPersistence }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "rate" or "mission"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "mission" {
		return ErrMissionNotFound
	}
	return ErrRateNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInvalidSnapshot) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrMissionNotFound) ||
		errors.Is(err, ErrNoBackup)
}
