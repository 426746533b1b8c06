package filter

import (
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// String renders r back into the textual rule syntax ParseRule accepts,
// used when re-transmitting a locally configured rule set to the other
// side (spec §4.11's filter-rule exchange, rsync's flist.c:send_rules).
func (r Rule) String() string {
	var prefix string
	switch r.Action {
	case Include:
		prefix = "+"
	case Exclude:
		prefix = "-"
	case Protect:
		prefix = "P"
	case Risk:
		prefix = "R"
	case Clear:
		return "!"
	}
	pattern := r.Pattern
	if r.Anchored {
		pattern = "/" + pattern
	}
	if r.DirectoryOnly {
		pattern = pattern + "/"
	}
	return prefix + " " + pattern
}

// WriteRules sends rules as a sequence of length-prefixed rule lines
// terminated by a zero-length line, matching rsync's filter-rule
// exchange (flist.c:send_filter_list). Both sides perform this exchange
// once, before file-list transmission.
func WriteRules(c *rsyncwire.Conn, rules []Rule) error {
	for _, r := range rules {
		line := r.String()
		if err := c.WriteInt32(int32(len(line))); err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte(line)); err != nil {
			return err
		}
	}
	return c.WriteInt32(0)
}

// ReadRules reads the inverse of WriteRules.
func ReadRules(c *rsyncwire.Conn) ([]Rule, error) {
	var rules []Rule
	for {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return rules, nil
		}
		line, err := c.ReadString(int(n))
		if err != nil {
			return nil, err
		}
		r, err := ParseRule(line)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
}
