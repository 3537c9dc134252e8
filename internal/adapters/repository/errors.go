package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("document not found")
	ErrAlreadyExists  = errors.New("document already exists")
	ErrBatchTooLarge  = errors.New("batch exceeds store limit")
	ErrInvalidPatch   = errors.New("invalid document patch")
	ErrClosed         = errors.New("store is closed")
	ErrInvalidRequest = errors.New("invalid store request")
)
