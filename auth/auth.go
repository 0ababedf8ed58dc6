// Package auth tracks the signed-in identity of the planner process and
// exposes sign-in, sign-up and sign-out against an account directory.
package auth

import "errors"

var (
	ErrMissingFields      = errors.New("please fill all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountCreation    = errors.New("could not create account")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrInvalidToken       = errors.New("invalid session token")
)

// State is the session state machine position.
type State string

const (
	StateUnknown   State = "unknown" // existing session not yet checked
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

// Identity is the opaque handle of a signed-in account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Session is a snapshot of the provider state. Identity is zero unless
// State is StateSignedIn.
type Session struct {
	State    State    `json:"state"`
	Identity Identity `json:"identity"`
}

// SignedIn reports whether s carries an active identity.
func (s Session) SignedIn() bool {
	return s.State == StateSignedIn && s.Identity.UID != ""
}
