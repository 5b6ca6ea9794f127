package bugzilla

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is reported when the tracker answers a session check but
// does not recognise the caller.
var ErrNotLoggedIn = errors.New("authentication token is invalid or user is already logged out")

// AuthenticationError means no usable credentials were accepted by Bugzilla.
type AuthenticationError struct {
	Method string // credential kind: "apikey" or "legacy"
	Code   int
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bugzilla %s authentication failed (code %d): %v", e.Method, e.Code, e.Err)
	}
	return fmt.Sprintf("bugzilla %s authentication failed: %v", e.Method, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// QueryError wraps transport, HTTP and payload failures of a tracker call.
type QueryError struct {
	Op         string
	StatusCode int
	Code       int
	Err        error
}

func (e *QueryError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("bugzilla %s failed (code %d): %v", e.Op, e.Code, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("bugzilla %s returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bugzilla %s failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// authErrorCodes are Bugzilla fault codes that concern the caller's identity.
var authErrorCodes = map[int]bool{
	300:   true, // invalid username or password
	301:   true, // account disabled
	305:   true, // new password required
	306:   true, // api key not valid
	307:   true, // api key does not belong to user
	410:   true, // login required
	32000: true, // token invalid
}

// isAuthFailure reports whether err should trigger the legacy login fallback.
func isAuthFailure(err error) bool {
	if errors.Is(err, ErrNotLoggedIn) {
		return true
	}
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
