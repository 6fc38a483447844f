package domain

import "errors"

var (
	// ErrInvalidRequest is returned when a tick claim is submitted with missing
	// identifiers or an empty tick set. Nothing is written.
	ErrInvalidRequest = errors.New("invalid tick request")

	// ErrClaimNotFound is returned when approving or rejecting a claim that does
	// not exist or has already been superseded by a newer decision.
	ErrClaimNotFound = errors.New("tick claim not found")

	// ErrCharacterNotFound is returned when a character lookup comes back empty.
	ErrCharacterNotFound = errors.New("character not found")

	// ErrRaidNotFound is returned when a raid lookup comes back empty.
	ErrRaidNotFound = errors.New("raid not found")

	// ErrLootNotFound is returned when a loot award lookup comes back empty.
	ErrLootNotFound = errors.New("loot award not found")

	// ErrUnauthorized is returned when the supplied actor lacks the capability
	// the operation requires. Enforced at the API layer; the engine re-checks
	// defensively and returns this instead of writing.
	ErrUnauthorized = errors.New("actor not authorized")

	// ErrDuplicateName is returned when creating a character whose name is
	// already taken by a non-deleted character.
	ErrDuplicateName = errors.New("character name already taken")
)
