package wiki

import (
	"fmt"
	"regexp"

	"github.com/alvmarrod/wiki-weaver/internal/config"
)

// Category patterns that disqualify a page under the strict policy
var biographyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`People`),
	regexp.MustCompile(`Biography`),
}

// Policy decides topic admissibility from a page's categories
type Policy struct {
	name     string
	excluded []*regexp.Regexp
}

// StrictPolicy admits categorized pages that are not about people
var StrictPolicy = Policy{name: config.PolicyStrict, excluded: biographyPatterns}

// RelaxedPolicy admits every categorized page, biographies included
var RelaxedPolicy = Policy{name: config.PolicyRelaxed}

// ParsePolicy maps a configured policy name to its Policy
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicyStrict:
		return StrictPolicy, nil
	case config.PolicyRelaxed:
		return RelaxedPolicy, nil
	}
	return Policy{}, fmt.Errorf("unknown topic policy %q", name)
}

// Name returns the policy name
func (p Policy) Name() string {
	return p.name
}

// IsExcluded checks if a category matches any excluded pattern
func (p Policy) IsExcluded(category string) bool {
	for _, pattern := range p.excluded {
		if pattern.MatchString(category) {
			return true
		}
	}
	return false
}

// Admit reports whether a page with these categories is an admissible topic.
// Uncategorized pages are never admitted.
func (p Policy) Admit(categories []string) bool {
	if len(categories) == 0 {
		return false
	}
	for _, category := range categories {
		if p.IsExcluded(category) {
			return false
		}
	}
	return true
}
