package catalog

import "errors"

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrConflict indicates a unique path or id is already taken.
var ErrConflict = errors.New("document already exists")

// ErrDanglingReference indicates a referenced document does not exist.
var ErrDanglingReference = errors.New("referenced document not found")

// ErrInvalidDocument indicates a document or request violates the schema.
var ErrInvalidDocument = errors.New("invalid document")
