package keg

import "errors"

var (
	// ErrTampered means the decrypted anti-tamper header did not match the
	// record's outer id/type. The keg is unusable; no fields were applied.
	ErrTampered = errors.New("keg payload tampered")
	// ErrIdentityMismatch means a record arrived under a different id than
	// the one this keg was already assigned. Fatal for the keg.
	ErrIdentityMismatch = errors.New("keg identity mismatch")
	// ErrNoID is returned by operations that need a server-assigned id
	// before the keg has ever been saved.
	ErrNoID = errors.New("keg has no id yet")
)
