package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Validation errors. These never reach the prover or the verifier.
var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrCooldownActive       = errors.New("cooldown active")
	ErrInputOverflow        = errors.New("input overflow")
	ErrSignalCountMismatch  = errors.New("public signal count mismatch")
	ErrMalformedProof       = errors.New("malformed proof")
	ErrNonceMismatch        = errors.New("nonce mismatch")
	ErrAlreadyExists        = errors.New("already exists")
	ErrTransitionInProgress = errors.New("transition in progress")
)

// Proof, submission and storage errors.
var (
	ErrProofGenerationFailed = errors.New("proof generation failed")
	ErrSubmissionFailed      = errors.New("submission failed")
	ErrPersistenceFailed     = errors.New("persistence failed")
)

// IsValidation reports whether err belongs to the cheap, local validation
// class that callers can fix by correcting their input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidTransition, ErrInputOverflow, ErrSignalCountMismatch,
		ErrMalformedProof, ErrNonceMismatch, ErrAlreadyExists, ErrNotFound,
		ErrTransitionInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
