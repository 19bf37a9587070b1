package store

import "errors"

// Sentinel errors returned by the entity layer. Services translate
// these into domain errors at the boundary.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrIndexConflict = errors.New("store: unique index conflict")
)
