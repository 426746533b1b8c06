package filter

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Engine holds the live rule stack for one transfer side and evaluates
// candidate paths against it.
type Engine struct {
	rules      []Rule
	side       Scope
	mergeName  string
	mergeStack []mergeFrame
}

// mergeFrame records how many rules a per-directory merge file
// contributed, so they can be popped again on leaving that subtree
// (spec §4.11 "Per-directory merge rules").
type mergeFrame struct {
	dir   string
	count int
}

// New builds an Engine evaluating rules from the given side's
// perspective (Sender or Receiver); rules scoped to Both always apply,
// rules scoped to the other side are skipped. mergeFilename is the
// per-directory merge file name (e.g. ".rsync-filter"); empty disables
// per-directory merging.
func New(rules []Rule, side Scope, mergeFilename string) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...), side: side, mergeName: mergeFilename}
}

// MergeFilename returns the configured per-directory merge file name,
// or "" if disabled.
func (e *Engine) MergeFilename() string { return e.mergeName }

// PushMergeFile adds rules parsed from a per-directory merge file found
// in dir, to be popped again by PopMergeFile when the walk leaves dir.
func (e *Engine) PushMergeFile(dir string, contents string) error {
	var added []Rule
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		r, err := ParseRule(line)
		if err != nil {
			return err
		}
		r.Perishable = true
		added = append(added, r)
	}
	e.rules = append(e.rules, added...)
	e.mergeStack = append(e.mergeStack, mergeFrame{dir: dir, count: len(added)})
	return nil
}

// PopMergeFile removes the rules most recently pushed for dir, if any
// frame is on top of the stack for it.
func (e *Engine) PopMergeFile(dir string) {
	if len(e.mergeStack) == 0 {
		return
	}
	top := e.mergeStack[len(e.mergeStack)-1]
	if top.dir != dir {
		return
	}
	e.mergeStack = e.mergeStack[:len(e.mergeStack)-1]
	e.rules = e.rules[:len(e.rules)-top.count]
}

// Decide evaluates path p (relative to the transfer root, using forward
// slashes) against the rule stack and returns the action of the first
// matching rule, or Include if nothing matches (rsync's default is to
// transfer anything not explicitly excluded). isDir tells Decide
// whether p names a directory, for directory_only pattern matching.
//
// A Clear rule, once reached by a walk that matched nothing before it,
// discards every rule before it for the remainder of evaluation; Clear
// is handled by Compile rather than here, since its effect is
// positional, not a runtime branch.
func (e *Engine) Decide(p string, isDir bool) Action {
	p = strings.TrimPrefix(p, "/")
	for _, r := range e.rules {
		if r.Action == Clear {
			continue // already folded out by Compile; tolerate stragglers
		}
		if r.Scope != Both && r.Scope != e.side {
			continue
		}
		if r.DirectoryOnly && !isDir {
			continue
		}
		if matchPattern(r.Pattern, p, r.Anchored, isDir) {
			return r.Action
		}
	}
	return Include
}

// Compile folds Clear rules into the list by discarding every rule
// before them, matching spec §4.11 ("A Clear rule resets the list").
// Call this once after assembling rules from global + per-host + CLI
// sources, before per-directory merge files are pushed.
func Compile(rules []Rule) []Rule {
	out := rules
	for i, r := range rules {
		if r.Action == Clear {
			out = append([]Rule(nil), rules[i+1:]...)
		}
	}
	return out
}

// matchPattern reports whether pattern matches path p. A pattern
// containing no slash matches against the path's base name at any
// depth, like rsync's non-anchored single-component patterns; a pattern
// containing a slash (or explicitly anchored) matches the full relative
// path. "**" segments match any number of path components (doublestar's
// native behavior); "*" matches within a single component; "?" and
// "[...]" behave as usual glob classes.
func matchPattern(pattern, p string, anchored, isDir bool) bool {
	if !strings.Contains(pattern, "/") && !anchored {
		base := path.Base(p)
		ok, _ := doublestar.Match(pattern, base)
		if ok {
			return true
		}
		// Non-anchored patterns also match at any depth against the
		// full path when they contain a wildcard spanning components.
		ok, _ = doublestar.Match("**/"+pattern, p)
		return ok
	}
	pattern = strings.TrimPrefix(pattern, "/")
	ok, _ := doublestar.Match(pattern, p)
	return ok
}
