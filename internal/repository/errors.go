// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// authorization resolver to distinguish between different failure
// scenarios without inspecting SQL error strings. For example,
// ErrNoActiveSession indicates that no live session row backs the
// presented access token, which the resolver treats as an
// authentication failure rather than a lookup miss.
package repository

import "errors"

// ErrNoActiveSession is returned when no session row matches an access
// token, or the matching row has been soft-deleted by a logout.
var ErrNoActiveSession = errors.New("no active session")

// ErrNoMembership is returned when a (user, tenant) pair has no row in
// tenant_users. The permission gate treats this the same as a
// non-active membership.
var ErrNoMembership = errors.New("no tenant membership")

// ErrNoUser is returned when no user row matches a lookup. Login
// handlers should respond with invalid credentials rather than
// revealing whether the account exists.
var ErrNoUser = errors.New("no such user")
