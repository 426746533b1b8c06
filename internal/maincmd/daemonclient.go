package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/oferchen/rsync-sub027"
	"github.com/oferchen/rsync-sub027/internal/log"
	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
	"github.com/oferchen/rsync-sub027/internal/rsyncos"
	"github.com/oferchen/rsync-sub027/internal/rsyncstats"
)

// serverOptions renders the subset of opts that must be forwarded to a
// remote `rsync --server` invocation, rsync's main.c:server_options.
// Short flags are bundled into one argument the way tridge rsync (but
// not openrsync) emits them.
func serverOptions(opts *rsyncopts.Options) []string {
	var bundle strings.Builder
	bundle.WriteByte('-')
	bundle.WriteByte('l') // always request link handling info; receiver decides
	if opts.Verbose() {
		bundle.WriteByte('v')
	}
	if opts.PreserveLinks() {
		bundle.WriteByte('l')
	}
	if opts.PreservePerms() {
		bundle.WriteByte('p')
	}
	if opts.PreserveMTimes() {
		bundle.WriteByte('t')
	}
	if opts.PreserveGid() {
		bundle.WriteByte('g')
	}
	if opts.PreserveUid() {
		bundle.WriteByte('o')
	}
	if opts.PreserveDevices() {
		bundle.WriteByte('D')
	}
	bundle.WriteByte('r')

	args := []string{bundle.String()}
	if opts.DryRun() {
		args = append(args, "--dry-run")
	}
	if opts.DeletesEnabled() {
		args = append(args, "--delete")
	}
	if opts.Sender() {
		args = append(args, "--sender")
	}
	return args
}

// socketClient speaks the rsync daemon TCP protocol directly (rsync's
// main.c:start_socket_client): greeting exchange, module selection,
// server-options transmission, then hands off to clientRun for the
// actual transfer.
func socketClient(ctx context.Context, osenv rsyncos.Std, opts *rsyncopts.Options, host, path string, port int, other string) (*rsyncstats.TransferStats, error) {
	if port == 0 {
		port = 873
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("maincmd: dialing %s: %w", addr, err)
	}
	defer conn.Close()

	module, modPath, found := strings.Cut(path, "/")
	if !found {
		modPath = "."
	}

	rd := bufio.NewReader(conn)

	greeting, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(greeting, "@RSYNCD: ") {
		return nil, fmt.Errorf("maincmd: malformed daemon greeting %q", greeting)
	}
	if opts.Verbose() {
		log.Printf("daemon greeting: %q", strings.TrimSpace(greeting))
	}

	if _, err := fmt.Fprintf(conn, "@RSYNCD: %d\n", rsync.ProtocolVersion); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", module); err != nil {
		return nil, err
	}

	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(line, "@ERROR") {
			return nil, fmt.Errorf("maincmd: daemon error: %s", strings.TrimSpace(line))
		}
		if strings.TrimSpace(line) == "@RSYNCD: OK" {
			break
		}
	}

	for _, flag := range serverOptions(opts) {
		if _, err := fmt.Fprintf(conn, "%s\n", flag); err != nil {
			return nil, err
		}
	}
	if _, err := fmt.Fprintf(conn, ".\n%s\n\n", modPath); err != nil {
		return nil, err
	}

	wrapped := struct {
		io.Reader
		io.Writer
	}{Reader: rd, Writer: conn}

	return clientRun(osenv, opts, wrapped, []string{other}, true)
}

// startInbandExchange performs the equivalent daemon handshake over a
// remote-shell pipe (rsync's main.c:start_inband_exchange), used when
// the user specified -e/--rsh alongside a daemon hostspec.
func startInbandExchange(osenv rsyncos.Std, opts *rsyncopts.Options, conn io.ReadWriter, module, path string) (bool, error) {
	if _, err := fmt.Fprintf(conn, "@RSYNCD: %d\n", rsync.ProtocolVersion); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", module); err != nil {
		return false, err
	}

	rd := bufio.NewReader(conn)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return false, err
		}
		if strings.HasPrefix(line, "@ERROR") {
			return false, fmt.Errorf("maincmd: daemon error: %s", strings.TrimSpace(line))
		}
		if strings.TrimSpace(line) == "@RSYNCD: OK" {
			break
		}
	}

	for _, flag := range serverOptions(opts) {
		if _, err := fmt.Fprintf(conn, "%s\n", flag); err != nil {
			return false, err
		}
	}
	if _, err := fmt.Fprintf(conn, ".\n%s\n\n", path); err != nil {
		return false, err
	}

	return false, nil
}
