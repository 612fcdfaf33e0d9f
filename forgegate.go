// Package forgegate bundles the permission-resolution pieces into one
// Authorizer: membership resolver, organization context, evaluator and
// guards, all bound to a single identity. The server builds one per request;
// the CLI builds one per invocation.
package forgegate

import (
	"log/slog"

	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/store"
)

// Authorizer is the assembled permission stack for one identity.
type Authorizer struct {
	Identity  authz.Identity
	Resolver  *authz.Resolver
	Context   *authz.OrgContext
	Evaluator *authz.Evaluator
	Guards    *authz.Guards
}

// NewAuthorizer wires an Authorizer over the given store and identity.
func NewAuthorizer(s store.Store, identity authz.Identity, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := authz.NewResolver(s, s, logger)
	orgCtx := authz.NewOrgContext(resolver, s, identity)
	evaluator := authz.NewEvaluator(s, identity, orgCtx, logger)
	guards := authz.NewGuards(evaluator, orgCtx, identity, logger)
	return &Authorizer{
		Identity:  identity,
		Resolver:  resolver,
		Context:   orgCtx,
		Evaluator: evaluator,
		Guards:    guards,
	}
}
