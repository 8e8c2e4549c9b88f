// Package guard decides whether a requester may mutate a resource.
package guard

import (
	"errors"
	"fmt"

	"github.com/blogjet/blogjet/internal/identity"
)

// ErrNotOwner is returned when requester is not the resource owner.
var ErrNotOwner = errors.New("not owner")

// NotOwnerError carries both identities of a failed ownership check.
type NotOwnerError struct {
	Owner     string
	Requester string
}

// Error ...
func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("%s: owner=%s requester=%s", ErrNotOwner, e.Owner, e.Requester)
}

// Is makes NotOwnerError match ErrNotOwner.
func (e *NotOwnerError) Is(target error) bool {
	return target == ErrNotOwner
}

// Authorize returns nil when owner and requester are the same identity.
// The resource must be known to exist before Authorize is called.
func Authorize(owner, requester interface{}) error {
	o, r := identity.Canonical(owner), identity.Canonical(requester)

	if o == "" || o != r {
		return &NotOwnerError{Owner: o, Requester: r}
	}

	return nil
}
