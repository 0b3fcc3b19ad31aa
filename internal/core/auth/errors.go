package auth

import "errors"

// Authentication failures are split so handlers can map them to distinct
// HTTP statuses. 401 for missing/invalid (does not confirm key existence),
// 403 for revoked (confirms key exists but is blocked).
var (
	ErrMissingKey       = errors.New("API key required in X-Api-Key header")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
)
