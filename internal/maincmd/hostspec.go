package maincmd

import (
	"fmt"
	"strconv"
	"strings"
)

// checkForHostspec parses one command-line source/destination argument
// into its remote-shell or daemon-socket components, mirroring rsync's
// own argument grammar (rsync/main.c:check_for_hostspec):
//
//	rsync://host[:port]/module/path  -> daemon via socket
//	host::module/path                -> daemon via socket
//	host:path                        -> remote shell
//	path                             -> local (err != nil)
func checkForHostspec(s string) (host, path string, port int, err error) {
	if rest, ok := strings.CutPrefix(s, "rsync://"); ok {
		hostPort, modPath, found := strings.Cut(rest, "/")
		if !found {
			return "", "", 0, fmt.Errorf("maincmd: malformed rsync:// URL %q", s)
		}
		host = hostPort
		port = 873
		if h, p, found := strings.Cut(hostPort, ":"); found {
			host = h
			port, err = strconv.Atoi(p)
			if err != nil {
				return "", "", 0, fmt.Errorf("maincmd: malformed port in %q", s)
			}
		}
		return host, modPath, port, nil
	}

	if h, rest, found := strings.Cut(s, "::"); found {
		return h, rest, 873, nil
	}

	// A single colon denotes a remote-shell hostspec, but only when it
	// appears before the first path separator (so that "./a:b" is not
	// mistaken for a hostspec, matching rsync's own disambiguation).
	if idx := strings.IndexByte(s, ':'); idx > 0 && !strings.ContainsRune(s[:idx], '/') {
		return s[:idx], s[idx+1:], 0, nil
	}

	return "", "", 0, fmt.Errorf("maincmd: %q has no hostspec", s)
}
