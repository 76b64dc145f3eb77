package routing

import (
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestRouter_AbsentConfigurationDefaultsToRelationalOnly(t *testing.T) {
	router := FromConfig(config.FeatureFlags{})

	for _, entity := range []domain.EntityType{domain.EntityProduct, domain.EntityCart, domain.EntityAddress} {
		assert.False(t, router.ShouldUseSecondary(entity), entity)
		assert.False(t, router.ShouldDualWrite(entity), entity)
		assert.False(t, router.Policy(entity).WritesSecondary(), entity)
	}
}

func TestRouter_NilRouterIsSafe(t *testing.T) {
	var router *Router
	assert.Equal(t, Policy{}, router.Policy(domain.EntityCart))
	assert.False(t, router.ShouldUseSecondary(domain.EntityCart))
}

func TestRouter_UnknownEntityGetsZeroPolicy(t *testing.T) {
	router := FromConfig(config.FeatureFlags{UseMongoForProducts: true})
	assert.Equal(t, Policy{}, router.Policy(domain.EntityType("order")))
}

func TestRouter_FlagsAreIndependentPerEntity(t *testing.T) {
	router := FromConfig(config.FeatureFlags{
		UseMongoForProducts: true,
		DualWriteCarts:      true,
	})

	assert.True(t, router.ShouldUseSecondary(domain.EntityProduct))
	assert.False(t, router.ShouldDualWrite(domain.EntityProduct))
	assert.True(t, router.Policy(domain.EntityProduct).WritesSecondary())

	assert.False(t, router.ShouldUseSecondary(domain.EntityCart))
	assert.True(t, router.ShouldDualWrite(domain.EntityCart))

	assert.Equal(t, Policy{}, router.Policy(domain.EntityAddress))
}

func TestRouter_PoliciesAreCopiedAtConstruction(t *testing.T) {
	policies := map[domain.EntityType]Policy{domain.EntityAddress: {DualWrite: true}}
	router := NewRouter(policies)

	policies[domain.EntityAddress] = Policy{UseSecondary: true}

	assert.Equal(t, Policy{DualWrite: true}, router.Policy(domain.EntityAddress))
}

// Feature: hybrid-storefront, Property 1: Secondary writes follow the flags
func TestProperty_WritesSecondaryWhenEitherFlagIsSet(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("writes reach the document store iff dual write or secondary reads are on", prop.ForAll(
		func(useSecondary bool, dualWrite bool) bool {
			p := Policy{UseSecondary: useSecondary, DualWrite: dualWrite}
			if p.WritesSecondary() != (useSecondary || dualWrite) {
				t.Logf("FAIL: WritesSecondary mismatch for %+v", p)
				return false
			}
			if p.ReadsSecondary() != useSecondary {
				t.Logf("FAIL: ReadsSecondary mismatch for %+v", p)
				return false
			}
			return true
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
