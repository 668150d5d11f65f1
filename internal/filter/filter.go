// Package filter implements the term matching engine used to search media
// feeds that have no server-side search endpoint.
package filter

import (
	"regexp"
	"strings"
)

// Scope defines which part of an item a term matches against.
type Scope string

// Supported scopes.
const (
	ScopeTitle   Scope = "title"
	ScopeContent Scope = "content"
	ScopeAll     Scope = "all"
)

// Item is the searchable text of a feed entry.
type Item struct {
	Title       string
	Description string
}

type term struct {
	exclude bool
	scope   Scope
	text    string
	re      *regexp.Regexp
}

// Query is a compiled search. The zero Query matches every item.
type Query struct {
	terms []term
}

// Parse compiles free search text.
//
// Words prefixed with "-" exclude items containing them, words wrapped in
// slashes ("/pattern/") are case-insensitive regular expressions, and a
// "title:" or "desc:" prefix limits a word to that field. The remaining
// words are matched as one phrase. Invalid patterns are dropped.
func Parse(text string) Query {
	var q Query
	var phrase []string
	for _, w := range strings.Fields(text) {
		t := term{scope: ScopeAll}
		if len(w) > 1 && w[0] == '-' {
			t.exclude = true
			w = w[1:]
		}
		if field, rest, ok := strings.Cut(w, ":"); ok && rest != "" {
			switch strings.ToLower(field) {
			case "title":
				t.scope, w = ScopeTitle, rest
			case "desc":
				t.scope, w = ScopeContent, rest
			}
		}

		switch {
		case len(w) > 2 && w[0] == '/' && w[len(w)-1] == '/':
			re, err := regexp.Compile("(?i)" + w[1:len(w)-1])
			if err != nil {
				continue
			}
			t.re = re
		case t.exclude || t.scope != ScopeAll:
			t.text = strings.ToLower(w)
		default:
			phrase = append(phrase, w)
			continue
		}
		q.terms = append(q.terms, t)
	}
	if len(phrase) > 0 {
		q.terms = append(q.terms, term{scope: ScopeAll, text: strings.ToLower(strings.Join(phrase, " "))})
	}
	return q
}

// Empty reports whether the query has no terms.
func (q Query) Empty() bool {
	return len(q.terms) == 0
}

// Match checks whether an item passes the query. Include terms use OR
// logic (at least one must match), exclude terms use AND logic (none may
// match).
func (q Query) Match(item Item) bool {
	hasIncludes := false
	anyIncludeMatched := false

	for _, t := range q.terms {
		matched := t.matches(item)
		if t.exclude {
			if matched {
				return false
			}
			continue
		}
		hasIncludes = true
		anyIncludeMatched = anyIncludeMatched || matched
	}
	return !hasIncludes || anyIncludeMatched
}

func (t term) matches(item Item) bool {
	text := textForScope(item, t.scope)
	if t.re != nil {
		return t.re.MatchString(text)
	}
	return strings.Contains(text, t.text)
}

func textForScope(item Item, scope Scope) string {
	switch scope {
	case ScopeTitle:
		return strings.ToLower(item.Title)
	case ScopeContent:
		return strings.ToLower(item.Description)
	default:
		return strings.ToLower(item.Title + " " + item.Description)
	}
}
