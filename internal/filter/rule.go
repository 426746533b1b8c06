// Package filter implements rsync's include/exclude/protect rule engine
// (spec §4.11): ordered, first-match rule evaluation with anchored and
// directory-only patterns, plus per-directory merge files. Pattern
// matching is delegated to github.com/bmatcuk/doublestar/v4, which
// already implements the **/*/?/[class] grammar the spec calls for.
package filter

import (
	"fmt"

	"github.com/pkg/errors"
)

// Action is what a matching rule does to a candidate path.
type Action int

const (
	Include Action = iota
	Exclude
	Protect
	Risk
	Clear
)

func (a Action) String() string {
	switch a {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	case Protect:
		return "protect"
	case Risk:
		return "risk"
	case Clear:
		return "clear"
	default:
		return fmt.Sprintf("filter.Action(%d)", int(a))
	}
}

// Scope restricts a rule to one side of the transfer.
type Scope int

const (
	Both Scope = iota
	Sender
	Receiver
)

// Rule is one filter directive, matching spec §4.11's tuple
// {action, pattern, scope, anchored?, directory_only?, perishable?}.
type Rule struct {
	Action        Action
	Pattern       string
	Scope         Scope
	Anchored      bool // pattern had a leading "/": matches only relative to the transfer root
	DirectoryOnly bool // pattern had a trailing "/": matches only directories
	Perishable    bool // dropped when a Clear rule or directory exit pops this rule's merge file
}

// ParseRule parses one line of filter-rule syntax, e.g. "- *.o",
// "+ /etc/**", "P /secrets/", "!". The leading token selects the
// action: "+"/"include", "-"/"exclude", "P"/"protect", "R"/"risk",
// "!"/"clear".
func ParseRule(line string) (Rule, error) {
	tok, rest, ok := splitToken(line)
	if !ok {
		return Rule{}, errors.New("filter: empty rule")
	}

	var action Action
	switch tok {
	case "+", "include":
		action = Include
	case "-", "exclude":
		action = Exclude
	case "P", "protect":
		action = Protect
	case "R", "risk":
		action = Risk
	case "!", "clear":
		action = Clear
		return Rule{Action: Clear}, nil
	default:
		return Rule{}, errors.Errorf("filter: unrecognized rule action %q", tok)
	}

	pattern := rest
	if pattern == "" {
		return Rule{}, errors.Errorf("filter: rule %q is missing a pattern", line)
	}

	r := Rule{Action: action, Scope: Both}
	if pattern[0] == '/' {
		r.Anchored = true
		pattern = pattern[1:]
	}
	if len(pattern) > 1 && pattern[len(pattern)-1] == '/' {
		r.DirectoryOnly = true
		pattern = pattern[:len(pattern)-1]
	}
	r.Pattern = pattern
	return r, nil
}

// splitToken splits line on its first run of whitespace, returning the
// first token and the (trimmed) remainder.
func splitToken(line string) (tok, rest string, ok bool) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	line = line[i:]
	if line == "" {
		return "", "", false
	}
	j := 0
	for j < len(line) && line[j] != ' ' && line[j] != '\t' {
		j++
	}
	tok = line[:j]
	for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
		j++
	}
	return tok, line[j:], true
}
