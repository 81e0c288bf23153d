// Package auth issues and verifies operator access tokens for the local
// REST surface.
//
// An operator signs in through the relay facade (which authenticates
// against the hub or the offline credential cache). On success the API
// hands back a short-lived HS256 JWT whose subject is the operator's hub
// user id. Tokens carry a session id so that logout can revoke them
// before they expire; revocations live in memory only and are pruned as
// the underlying tokens expire.
package auth
