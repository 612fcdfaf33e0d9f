// Package authz implements permission resolution: organization membership,
// role and ability evaluation, repository permission levels, and the guard
// state machine consumed by the HTTP layer.
package authz

import "github.com/mscno/forgegate/pkg/model"

// Identity supplies the authenticated account a permission check runs for.
// The server layer binds one per request after token validation; the CLI
// binds one from its stored session.
type Identity interface {
	// CurrentAccount returns the authenticated account, or false when the
	// caller is anonymous.
	CurrentAccount() (*model.Account, bool)
}

// StaticIdentity is an Identity fixed to a single account. A nil account
// means anonymous.
type StaticIdentity struct {
	Account *model.Account
}

func (s StaticIdentity) CurrentAccount() (*model.Account, bool) {
	if s.Account == nil {
		return nil, false
	}
	return s.Account, true
}

var _ Identity = StaticIdentity{}
