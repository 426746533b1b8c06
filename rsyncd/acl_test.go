package rsyncd

import (
	"net"
	"testing"
)

type fakeAddr string

func (f fakeAddr) Network() string { return "tcp" }
func (f fakeAddr) String() string  { return string(f) }

func TestCheckACL(t *testing.T) {
	cases := []struct {
		name    string
		acls    []string
		addr    net.Addr
		wantErr bool
	}{
		{
			name: "no rules allows everything",
			acls: nil,
			addr: fakeAddr("203.0.113.5:4444"),
		},
		{
			name:    "deny all",
			acls:    []string{"deny all"},
			addr:    fakeAddr("203.0.113.5:4444"),
			wantErr: true,
		},
		{
			name: "allow then implicit deny falls through to allow on no match",
			acls: []string{"allow 10.0.0.0/8"},
			addr: fakeAddr("203.0.113.5:4444"),
		},
		{
			name:    "deny subnet, remote matches",
			acls:    []string{"deny 203.0.113.0/24", "allow all"},
			addr:    fakeAddr("203.0.113.5:4444"),
			wantErr: true,
		},
		{
			name: "deny subnet, remote does not match",
			acls: []string{"deny 203.0.113.0/24", "allow all"},
			addr: fakeAddr("198.51.100.5:4444"),
		},
		{
			name: "ipv6 subnet match",
			acls: []string{"allow 2001:db8::/32", "deny all"},
			addr: fakeAddr("[2001:db8::1]:4444"),
		},
		{
			name:    "ipv6 subnet miss falls to deny",
			acls:    []string{"allow 2001:db8::/32", "deny all"},
			addr:    fakeAddr("[2001:dead::1]:4444"),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkACL(tc.acls, tc.addr)
			if (err != nil) != tc.wantErr {
				t.Fatalf("checkACL(%q, %v) = %v, wantErr %v", tc.acls, tc.addr, err, tc.wantErr)
			}
		})
	}
}
