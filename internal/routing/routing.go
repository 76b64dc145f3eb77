// Package routing decides, per entity type, which store serves reads and
// whether writes are mirrored into the document store.
package routing

import (
	"storefront/internal/config"
	"storefront/internal/domain"
)

// Policy is the routing decision for one entity type. The zero value routes
// everything to the relational store with no dual write.
type Policy struct {
	UseSecondary bool `json:"use_secondary"`
	DualWrite    bool `json:"dual_write"`
}

// ReadsSecondary reports whether reads are served by the document store.
func (p Policy) ReadsSecondary() bool {
	return p.UseSecondary
}

// WritesSecondary reports whether a successful relational write must be
// followed by a best-effort document write.
func (p Policy) WritesSecondary() bool {
	return p.DualWrite || p.UseSecondary
}

// Router holds the immutable policies built at startup.
type Router struct {
	policies map[domain.EntityType]Policy
}

// NewRouter builds a router from explicit policies. Entity types without a
// policy get the zero Policy.
func NewRouter(policies map[domain.EntityType]Policy) *Router {
	copied := make(map[domain.EntityType]Policy, len(policies))
	for entity, policy := range policies {
		copied[entity] = policy
	}
	return &Router{policies: copied}
}

// FromConfig builds a router from the feature flags.
func FromConfig(flags config.FeatureFlags) *Router {
	return NewRouter(map[domain.EntityType]Policy{
		domain.EntityProduct: {UseSecondary: flags.UseMongoForProducts, DualWrite: flags.DualWriteProducts},
		domain.EntityCart:    {UseSecondary: flags.UseMongoForCarts, DualWrite: flags.DualWriteCarts},
		domain.EntityAddress: {UseSecondary: flags.UseMongoForAddresses, DualWrite: flags.DualWriteAddresses},
	})
}

func (r *Router) Policy(entity domain.EntityType) Policy {
	if r == nil {
		return Policy{}
	}
	return r.policies[entity]
}

func (r *Router) ShouldUseSecondary(entity domain.EntityType) bool {
	return r.Policy(entity).ReadsSecondary()
}

func (r *Router) ShouldDualWrite(entity domain.EntityType) bool {
	return r.Policy(entity).DualWrite
}

// Snapshot returns every configured policy keyed by entity name.
func (r *Router) Snapshot() map[string]Policy {
	out := make(map[string]Policy, 3)
	for _, entity := range []domain.EntityType{domain.EntityProduct, domain.EntityCart, domain.EntityAddress} {
		out[string(entity)] = r.Policy(entity)
	}
	return out
}
