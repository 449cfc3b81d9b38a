package targeting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/popup-engine/internal/domain"
)

func cond(t domain.ConditionType, value string) domain.TargetingCondition {
	return domain.TargetingCondition{Type: t, Value: value}
}

func TestMatchesSingleConditions(t *testing.T) {
	tests := []struct {
		name string
		cond domain.TargetingCondition
		url  string
		want bool
	}{
		{"contains hit", cond(domain.ConditionContains, "/products"), "https://site.com/products/shoes", true},
		{"contains miss", cond(domain.ConditionContains, "/products"), "https://site.com/blog", false},
		{"equals full url", cond(domain.ConditionEquals, "https://site.com/pricing"), "https://site.com/pricing", true},
		{"equals path form", cond(domain.ConditionEquals, "/pricing"), "https://site.com/pricing", true},
		{"equals miss", cond(domain.ConditionEquals, "/pricing"), "https://site.com/pricing/enterprise", false},
		{"startsWith raw path", cond(domain.ConditionStartsWith, "/blog"), "/blog/draft/post1", true},
		{"startsWith parsed path", cond(domain.ConditionStartsWith, "/blog"), "https://site.com/blog/post", true},
		{"startsWith miss", cond(domain.ConditionStartsWith, "/blog"), "https://site.com/about", false},
		{"doesNotContain hit", cond(domain.ConditionDoesNotContain, "/admin"), "https://site.com/shop", true},
		{"doesNotContain miss", cond(domain.ConditionDoesNotContain, "/admin"), "https://site.com/admin/users", false},
		{"landing root", cond(domain.ConditionLanding, ""), "https://site.com/", true},
		{"landing no slash", cond(domain.ConditionLanding, ""), "https://site.com", true},
		{"landing value ignored", cond(domain.ConditionLanding, "whatever"), "https://site.com/", true},
		{"landing deep page", cond(domain.ConditionLanding, ""), "https://site.com/products", false},
		{"unknown type", domain.TargetingCondition{Type: "regex", Value: ".*"}, "https://site.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches([]domain.TargetingCondition{tt.cond}, domain.LogicAnd, tt.url)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesDomainGate(t *testing.T) {
	c := domain.TargetingCondition{Type: domain.ConditionContains, Value: "/products", Domain: "site.com"}

	assert.True(t, Matches([]domain.TargetingCondition{c}, domain.LogicAnd, "https://site.com/products"))
	assert.True(t, Matches([]domain.TargetingCondition{c}, domain.LogicAnd, "https://www.site.com/products"),
		"www prefix is transparent")
	assert.False(t, Matches([]domain.TargetingCondition{c}, domain.LogicAnd, "https://other.com/products"),
		"domain gate fails the condition even when the type predicate holds")
	assert.False(t, Matches([]domain.TargetingCondition{c}, domain.LogicAnd, "/products"),
		"relative URL has no host to satisfy the domain gate")
}

func TestMatchesVacuousCases(t *testing.T) {
	assert.True(t, Matches(nil, domain.LogicAnd, "https://site.com/anything"))
	assert.False(t, Matches(nil, domain.LogicOr, "https://site.com/anything"))
	assert.True(t, Matches([]domain.TargetingCondition{}, domain.LogicAnd, ""))
	assert.False(t, Matches([]domain.TargetingCondition{}, domain.LogicOr, ""))
}

func TestMatchesOperators(t *testing.T) {
	blog := cond(domain.ConditionStartsWith, "/blog")
	noDrafts := cond(domain.ConditionDoesNotContain, "/blog/draft")

	// AND: all conditions must hold.
	assert.True(t, Matches([]domain.TargetingCondition{blog, noDrafts}, domain.LogicAnd, "/blog/post1"))
	assert.False(t, Matches([]domain.TargetingCondition{blog, noDrafts}, domain.LogicAnd, "/blog/draft/post1"))

	// OR: at least one must hold.
	assert.True(t, Matches([]domain.TargetingCondition{blog, noDrafts}, domain.LogicOr, "/blog/draft/post1"))
	assert.False(t, Matches([]domain.TargetingCondition{
		cond(domain.ConditionContains, "/a"),
		cond(domain.ConditionContains, "/b"),
	}, domain.LogicOr, "https://site.com/c"))
}

func TestMatchesOrderInvariant(t *testing.T) {
	conds := []domain.TargetingCondition{
		cond(domain.ConditionStartsWith, "/blog"),
		cond(domain.ConditionDoesNotContain, "/draft"),
		cond(domain.ConditionContains, "post"),
	}
	reversed := []domain.TargetingCondition{conds[2], conds[1], conds[0]}

	urls := []string{
		"/blog/post1",
		"/blog/draft/post1",
		"https://site.com/blog/post",
		"https://site.com/about",
	}
	for _, u := range urls {
		for _, op := range []domain.LogicOperator{domain.LogicAnd, domain.LogicOr} {
			assert.Equal(t, Matches(conds, op, u), Matches(reversed, op, u),
				"url=%s op=%s", u, op)
		}
	}
}

func TestMatchesSpringSaleScenario(t *testing.T) {
	conds := []domain.TargetingCondition{cond(domain.ConditionContains, "/products")}

	assert.True(t, Matches(conds, domain.LogicOr, "https://site.com/products/shoes"))
	assert.False(t, Matches(conds, domain.LogicOr, "https://site.com/blog"))
}

func TestMatchesMalformedURL(t *testing.T) {
	bad := "http://%zz%invalid"

	// String predicates still operate on the raw string.
	assert.True(t, Matches([]domain.TargetingCondition{cond(domain.ConditionContains, "invalid")}, domain.LogicAnd, bad))
	// Anything needing a parsed URL fails closed.
	assert.False(t, Matches([]domain.TargetingCondition{cond(domain.ConditionLanding, "")}, domain.LogicAnd, bad))
	assert.False(t, Matches([]domain.TargetingCondition{
		{Type: domain.ConditionContains, Value: "invalid", Domain: "site.com"},
	}, domain.LogicAnd, bad))
}
