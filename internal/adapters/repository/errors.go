package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrDuplicateMatch = errors.New("match already exists for rfq and supplier")
	ErrNotFound       = errors.New("match not found")
	ErrRFQNotFound    = errors.New("rfq not found")
	ErrUnknownDriver  = errors.New("unknown storage driver")
)
