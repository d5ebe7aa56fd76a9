// Package repository defines error types that are reused across the user
// and refresh-token repositories.  These sentinel values allow higher
// layers such as handlers to distinguish between different failure
// scenarios without inspecting driver-specific errors.  For example,
// ErrEmailExists indicates a registration collision, while ErrNotFound
// covers any lookup that matched no row.
package repository

import "errors"

// ErrEmailExists is returned when an insert would violate the unique
// constraint on the users.email column.  Handlers translate this into an
// HTTP 400 with a generic "already registered" message so the response
// never confirms which column collided.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a user or refresh-token lookup matched no
// row.  It deliberately carries no detail about why the row is absent
// (missing, expired or revoked) so callers cannot leak that distinction.
var ErrNotFound = errors.New("not found")
