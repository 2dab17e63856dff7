package usecases

import "strings"

// SynonymRule maps surface forms to a canonical id. The rule matches when any
// alternative matches; an alternative matches when all of its terms occur in
// the normalized message.
type SynonymRule struct {
	Canonical    string
	Alternatives [][]string
}

// Alias builds a rule whose alternatives are single terms.
func Alias(canonical string, terms ...string) SynonymRule {
	alts := make([][]string, 0, len(terms))
	for _, t := range terms {
		alts = append(alts, []string{t})
	}
	return SynonymRule{Canonical: canonical, Alternatives: alts}
}

// With adds an alternative that requires every term.
func (r SynonymRule) With(terms ...string) SynonymRule {
	r.Alternatives = append(r.Alternatives, terms)
	return r
}

// SynonymResolver evaluates rules in declaration order; first match wins.
type SynonymResolver struct {
	rules []SynonymRule
}

// NewSynonymResolver normalizes every term once so Resolve only does containment.
func NewSynonymResolver(rules ...SynonymRule) *SynonymResolver {
	out := make([]SynonymRule, 0, len(rules))
	for _, r := range rules {
		nr := SynonymRule{Canonical: r.Canonical}
		for _, alt := range r.Alternatives {
			terms := make([]string, 0, len(alt))
			for _, t := range alt {
				if nt := Normalize(t); nt != "" {
					terms = append(terms, nt)
				}
			}
			if len(terms) > 0 {
				nr.Alternatives = append(nr.Alternatives, terms)
			}
		}
		out = append(out, nr)
	}
	return &SynonymResolver{rules: out}
}

// Resolve returns the canonical id of the first matching rule. m must already be normalized.
func (s *SynonymResolver) Resolve(m string) (string, bool) {
	if s == nil || m == "" {
		return "", false
	}
	for _, r := range s.rules {
		if r.matches(m) {
			return r.Canonical, true
		}
	}
	return "", false
}

func (r SynonymRule) matches(m string) bool {
	for _, alt := range r.Alternatives {
		all := true
		for _, t := range alt {
			if !strings.Contains(m, t) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
