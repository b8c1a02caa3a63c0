package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound       = errors.New("not found")
	ErrCorruptPayload = errors.New("payload is missing a decodable order identity")
	ErrNoLineItems    = errors.New("order has no line items")
	ErrReferenceEmpty = errors.New("reference data unavailable: no products or box classes loaded")
	ErrInvalidPayload = errors.New("request body is not valid JSON")
	ErrInvalidStatus  = errors.New("invalid status: must be pending, processing, completed, or failed")
)
