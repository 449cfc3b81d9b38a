// Package targeting decides whether a popup should appear on a given page.
//
// The evaluator is a pure function over an activity's targeting conditions.
// It runs on every page view (the embedded client script ships the same
// logic), so it must stay allocation-light and O(number of conditions).
package targeting

import (
	"net/url"
	"strings"

	"github.com/ignite/popup-engine/internal/domain"
)

// Matches reports whether pageURL satisfies the given conditions under the
// logic operator.
//
// AND is vacuously true for an empty condition list, OR vacuously false:
// an AND popup with no conditions fires everywhere, an OR popup with no
// conditions never fires.
func Matches(conds []domain.TargetingCondition, op domain.LogicOperator, pageURL string) bool {
	if len(conds) == 0 {
		return op == domain.LogicAnd
	}

	host, path, parsed := splitURL(pageURL)

	for _, c := range conds {
		ok := evalCondition(c, pageURL, host, path, parsed)
		if op == domain.LogicOr && ok {
			return true
		}
		if op != domain.LogicOr && !ok {
			return false
		}
	}
	// AND: every condition held. OR: none did.
	return op != domain.LogicOr
}

// evalCondition applies one condition. A domain restriction is gated in
// front of the type predicate: if the page's host does not equal the
// condition's domain, the condition is false regardless of type.
func evalCondition(c domain.TargetingCondition, rawURL, host, path string, parsed bool) bool {
	if c.Domain != "" {
		if !parsed || !hostEquals(host, c.Domain) {
			return false
		}
	}

	switch c.Type {
	case domain.ConditionContains:
		return strings.Contains(rawURL, c.Value)
	case domain.ConditionEquals:
		return rawURL == c.Value || (parsed && path == c.Value)
	case domain.ConditionStartsWith:
		return strings.HasPrefix(rawURL, c.Value) || (parsed && strings.HasPrefix(path, c.Value))
	case domain.ConditionDoesNotContain:
		return !strings.Contains(rawURL, c.Value)
	case domain.ConditionLanding:
		// Value is unused: true only on the site root.
		return parsed && (path == "" || path == "/")
	}
	return false
}

// splitURL extracts the host and path from a page URL. Bare paths like
// "/products" parse with an empty host; that still counts as parsed so the
// landing and path-prefix checks work for client-relative URLs.
func splitURL(rawURL string) (host, path string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", false
	}
	return u.Hostname(), u.Path, true
}

// hostEquals compares hosts case-insensitively and treats "www." as
// transparent, so a condition scoped to "site.com" matches www.site.com.
func hostEquals(host, want string) bool {
	h := strings.TrimPrefix(strings.ToLower(host), "www.")
	w := strings.TrimPrefix(strings.ToLower(want), "www.")
	return h == w
}
