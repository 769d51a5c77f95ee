package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new shortened URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an attempt is made to retrieve
	// a URL using a short code that doesn't exist.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a URL exists but its expiry time has
	// passed. Distinct from ErrURLNotFound so callers can surface it as
	// "gone" rather than "never existed".
	ErrURLExpired = errors.New("url expired")
)
