package syncerr

import (
	"fmt"

	crerr "github.com/cockroachdb/errors"
)

// Sentinels for the sync layer's failure classes. RemoteError carries more
// detail and gets its own type below.
var (
	// ErrCacheWrite marks a serialization or storage failure on the local
	// cache store. Always non-fatal: in-memory state stays correct.
	ErrCacheWrite = crerr.New("cache write failed")

	// ErrChannelDown marks a push-channel disconnect. Handled by reconnection
	// plus the periodic reconcile fallback, never surfaced to callers.
	ErrChannelDown = crerr.New("realtime channel disconnected")

	// ErrValidation marks caller-supplied data rejected before any mutation
	// was attempted.
	ErrValidation = crerr.New("validation failed")
)

// RemoteError is a transport failure or non-2xx response from the remote
// store gateway. Status is zero when the request never reached the server.
type RemoteError struct {
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("remote store: %s (status=%d)", e.Message, e.Status)
	}
	return "remote store: " + e.Message
}

// NewRemoteError builds a RemoteError from a transport-level failure.
func NewRemoteError(message string) *RemoteError {
	return &RemoteError{Message: message}
}

// NewRemoteStatusError builds a RemoteError from a non-success response.
func NewRemoteStatusError(status int, message string) *RemoteError {
	return &RemoteError{Message: message, Status: status}
}

// AsRemote unwraps err into a *RemoteError if it carries one.
func AsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if crerr.As(err, &remote) {
		return remote, true
	}
	return nil, false
}

// IsConflict reports whether err is a remote error with an HTTP conflict
// status. Used by the archived-tournament reconcile's update-then-create path.
func IsConflict(err error) bool {
	remote, ok := AsRemote(err)
	return ok && (remote.Status == 404 || remote.Status == 409)
}

// WrapCache tags err as a cache failure, preserving the original cause.
func WrapCache(err error, key string) error {
	return crerr.Wrapf(ErrCacheWrite, "key=%s: %v", key, err)
}
