package storage

import "errors"

// ErrTokenNotFound is returned by token stores when no pending record exists
// for a key. Never issued, already consumed and expired-then-purged all look
// the same to callers.
var ErrTokenNotFound = errors.New("token not found")
