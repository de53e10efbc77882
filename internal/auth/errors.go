package auth

import "errors"

// ErrAuthenticationFailed is the single error returned to callers when a
// bearer token fails both the local and the federated path. It carries no
// detail about which stage or check failed; the specifics are logged
// internally.
var ErrAuthenticationFailed = errors.New("authentication failed")
