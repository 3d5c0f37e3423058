package domain

import "errors"

var (
	// ErrMissingInput is returned when a required raw sensor file does not exist for a subject.
	ErrMissingInput = errors.New("missing raw input")
	// ErrMalformedInput is returned when raw rows do not match the expected columns or types.
	ErrMalformedInput = errors.New("malformed raw input")
	// ErrWarehouse wraps connection, schema and append failures against the warehouse.
	ErrWarehouse = errors.New("warehouse access failed")
)
