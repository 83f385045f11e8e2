package accounts

import "errors"

var (
	// ErrRecordNotFound is returned when no record is stored under a key
	ErrRecordNotFound = errors.New("account record not found")

	// ErrMissingIdentifier is returned when neither email nor account id is given
	ErrMissingIdentifier = errors.New("missing account identifier")

	// ErrInvalidRecord is returned when a record cannot be stored
	ErrInvalidRecord = errors.New("invalid account record")

	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)
