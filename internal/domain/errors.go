package domain

import "errors"

var (
	// ErrMalformedSample indicates an unparseable ingestion payload. The
	// sample is discarded before validation.
	ErrMalformedSample = errors.New("malformed step sample")
	// ErrPermissionRevoked is returned when the reporting device's health
	// data permission has been withdrawn; callers should fall back to
	// manual entry.
	ErrPermissionRevoked = errors.New("health data permission revoked for device")
	// ErrDaySealed is returned when steps arrive for a ledger day that has
	// already been sealed by rollover.
	ErrDaySealed = errors.New("ledger day already sealed")
	// ErrStorageUnavailable wraps transient persistence failures. The engine
	// makes a single bounded attempt; retrying with backoff is the caller's
	// responsibility.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDeviceNotFound is returned for operations on an unregistered device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoPrimaryDevice indicates reconciliation ran against a device set
	// with no primary.
	ErrNoPrimaryDevice = errors.New("no primary device registered")
	// ErrLedgerEntryNotFound is returned when no entry exists for the day.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
)
