package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when a signup reuses an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDeviceCodeNotFound is returned for an unknown pairing code.
	ErrDeviceCodeNotFound = errors.New("device code not found")
	// ErrDeviceCodeUsed is returned when a pairing code is already claimed.
	ErrDeviceCodeUsed = errors.New("device code already used")
)
