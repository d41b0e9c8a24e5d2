// Package entitlement decides which languages a user may execute.
//
// The rule is small and pure: a fixed set of "free" languages is open to
// everyone, anything else needs the pro flag. The free set is injected at
// construction so tests (and other deployments) can use different tiers.
package entitlement

import (
	"sort"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
)

// Policy holds an immutable free-language set. The zero value permits
// nothing to free users.
type Policy struct {
	free map[string]struct{}
}

// NewPolicy builds a Policy. Tags are matched case-insensitively.
func NewPolicy(freeLanguages ...string) Policy {
	free := make(map[string]struct{}, len(freeLanguages))
	for _, lang := range freeLanguages {
		if lang = normalize(lang); lang != "" {
			free[lang] = struct{}{}
		}
	}
	return Policy{free: free}
}

// IsFree reports whether language is open to every user.
func (p Policy) IsFree(language string) bool {
	_, ok := p.free[normalize(language)]
	return ok
}

// FreeLanguages returns the free set, sorted.
func (p Policy) FreeLanguages() []string {
	out := make([]string, 0, len(p.free))
	for lang := range p.free {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// CanExecute reports whether user may run language. A nil user is treated
// as a free-tier user.
func (p Policy) CanExecute(user *model.User, language string) bool {
	if p.IsFree(language) {
		return true
	}
	return user != nil && user.IsPro
}

// Check is CanExecute as an error: apperror.ErrEntitlementDenied when the
// language needs the pro tier and the user does not have it.
func (p Policy) Check(user *model.User, language string) error {
	if p.CanExecute(user, language) {
		return nil
	}
	return apperror.EntitlementDenied(normalize(language))
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
