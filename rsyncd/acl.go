package rsyncd

import (
	"fmt"
	"net"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// checkACL evaluates a module's "allow|deny <all|ipnet>" rule list
// against remoteAddr in order, matching rsyncd.conf's first-match-wins
// semantics: no match at all means allow. CIDR matching is delegated to
// ipaddress-go, which understands both IPv4 and IPv6 subnets uniformly
// instead of the stdlib's separate net.IPNet/net.ParseCIDR path.
func checkACL(acls []string, remoteAddr net.Addr) error {
	if len(acls) == 0 {
		return nil
	}
	host, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		return fmt.Errorf("BUG: invalid remote address %q", remoteAddr.String())
	}
	remoteIP := ipaddr.NewIPAddressString(host).GetAddress()
	if remoteIP == nil {
		return fmt.Errorf("BUG: invalid remote host %q", host)
	}

	for _, acl := range acls {
		i := strings.Index(acl, " ")
		if i < 0 {
			return fmt.Errorf("invalid acl: %q (no space found)", acl)
		}
		action, who := acl[:i], acl[i+len(" "):]
		if action != "allow" && action != "deny" {
			return fmt.Errorf("invalid acl: %q (syntax: allow|deny <all|ipnet>)", acl)
		}
		if who != "all" {
			subnet := ipaddr.NewIPAddressString(who).GetAddress()
			if subnet == nil {
				return fmt.Errorf("invalid acl: %q (syntax: allow|deny <all|ipnet>)", acl)
			}
			if !subnet.Contains(remoteIP) {
				continue // this instruction does not match, try the next one
			}
		}
		switch action {
		case "allow":
			return nil
		case "deny":
			return fmt.Errorf("access denied (acl %q)", acl)
		}
	}
	return nil
}
