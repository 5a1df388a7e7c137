// Package filter matches listings against keyword and category rules.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is how a rule's value is applied.
type Kind string

// Rule kinds.
const (
	Include   Kind = "include"
	Exclude   Kind = "exclude"
	IncludeRe Kind = "include_re"
	ExcludeRe Kind = "exclude_re"
)

// Scope is the part of an item a rule looks at.
type Scope string

// Rule scopes.
const (
	ScopeTitle Scope = "title"
	ScopeVenue Scope = "venue"
	ScopeAll   Scope = "all"
)

// Rule is one matching condition.
type Rule struct {
	Kind  Kind
	Scope Scope
	Value string
}

// Item is the text of a listing that rules are matched against.
type Item struct {
	Title string
	Venue string
}

// concertWords mark a title as a live music event.
var concertWords = []string{
	"演唱會", "演場會", "音樂會", "音樂節", "音樂祭", "演唱", "演出", "巡演", "演奏", "見面會",
	"fan meeting", "live", "concert", "tour",
}

// Match checks whether an item passes a set of rules.
// If no rules are provided, the item always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func Match(item Item, rules []Rule) bool {
	return Compile(rules).Keep(item)
}

// MatchAll reports whether item passes every rule group.
func MatchAll(item Item, groups ...[]Rule) bool {
	return Compile(groups...).Keep(item)
}

type compiledRule struct {
	Rule
	needle string
	re     *regexp.Regexp
}

// Matcher is a set of rule groups with their expressions compiled once. An
// item is kept when it passes every group.
type Matcher struct {
	groups [][]compiledRule
}

// Compile prepares rule groups for matching. A rule with an invalid
// expression never matches.
func Compile(groups ...[]Rule) *Matcher {
	m := &Matcher{groups: make([][]compiledRule, 0, len(groups))}
	for _, g := range groups {
		rules := make([]compiledRule, 0, len(g))
		for _, r := range g {
			cr := compiledRule{Rule: r, needle: strings.ToLower(r.Value)}
			if r.Kind == IncludeRe || r.Kind == ExcludeRe {
				cr.re, _ = regexp.Compile("(?i)" + r.Value)
			}
			rules = append(rules, cr)
		}
		m.groups = append(m.groups, rules)
	}
	return m
}

// Keep reports whether item passes every group.
func (m *Matcher) Keep(item Item) bool {
	for _, g := range m.groups {
		if !matchGroup(item, g) {
			return false
		}
	}
	return true
}

func matchGroup(item Item, rules []compiledRule) bool {
	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range rules {
		switch r.Kind {
		case Include, IncludeRe:
			hasIncludes = true
			if r.matches(item) {
				anyIncludeMatched = true
			}
		case Exclude, ExcludeRe:
			if r.matches(item) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

// Criteria are the listing filters a user can ask for.
type Criteria struct {
	// Keyword is a case-insensitive substring, or a regular expression
	// when wrapped in slashes ("/live|tour/").
	Keyword     string
	OnlyConcert bool
}

// Groups turns c into rule groups that must all pass.
func (c Criteria) Groups() [][]Rule {
	var groups [][]Rule
	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		if pattern, ok := regexKeyword(kw); ok {
			groups = append(groups, []Rule{{Kind: IncludeRe, Scope: ScopeAll, Value: pattern}})
		} else {
			groups = append(groups, []Rule{{Kind: Include, Scope: ScopeAll, Value: kw}})
		}
	}
	if c.OnlyConcert {
		concert := make([]Rule, 0, len(concertWords))
		for _, w := range concertWords {
			concert = append(concert, Rule{Kind: Include, Scope: ScopeTitle, Value: w})
		}
		groups = append(groups, concert)
	}
	return groups
}

// Matcher compiles c for matching many items.
func (c Criteria) Matcher() *Matcher {
	return Compile(c.Groups()...)
}

// Keep reports whether item satisfies c.
func (c Criteria) Keep(item Item) bool {
	return c.Matcher().Keep(item)
}

// Validate checks that a slash-wrapped keyword is a valid expression.
func (c Criteria) Validate() error {
	if pattern, ok := regexKeyword(strings.TrimSpace(c.Keyword)); ok {
		return ValidateRegex(pattern)
	}
	return nil
}

var concertMatcher = Criteria{OnlyConcert: true}.Matcher()

// LooksLikeConcert reports whether a title names a live music event.
func LooksLikeConcert(title string) bool {
	return concertMatcher.Keep(Item{Title: title})
}

func regexKeyword(kw string) (string, bool) {
	if len(kw) > 2 && strings.HasPrefix(kw, "/") && strings.HasSuffix(kw, "/") {
		return kw[1 : len(kw)-1], true
	}
	return "", false
}

// matches tests the rule against each field in its scope separately, so
// anchors in an expression apply to a single field.
func (r compiledRule) matches(item Item) bool {
	for _, text := range fieldsForScope(item, r.Scope) {
		switch r.Kind {
		case Include, Exclude:
			if strings.Contains(strings.ToLower(text), r.needle) {
				return true
			}
		case IncludeRe, ExcludeRe:
			if r.re != nil && r.re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func fieldsForScope(item Item, scope Scope) []string {
	switch scope {
	case ScopeTitle:
		return []string{item.Title}
	case ScopeVenue:
		return []string{item.Venue}
	default:
		return []string{item.Title, item.Venue}
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
