package main

import (
	"crypto/subtle"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned when a signer other than the owner tries to
// change a history.
var ErrUnauthorized = errors.New("sorry, you are not allowed to record a price")

// Authorizer allows writes only from the configured owner account.
type Authorizer struct {
	owner []byte
}

func NewAuthorizer(owner string) *Authorizer {
	return &Authorizer{owner: []byte(owner)}
}

// Authorize returns ErrUnauthorized unless signer is the owner. An
// authorizer without an owner rejects everybody.
func (a *Authorizer) Authorize(signer string) error {
	if len(a.owner) == 0 || subtle.ConstantTimeCompare([]byte(signer), a.owner) != 1 {
		return errors.Wrapf(ErrUnauthorized, "signer %q", signer)
	}
	return nil
}
