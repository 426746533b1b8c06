// Package maincmd implements a subset of the '$ rsync' CLI surface:
//   - serve as a TCP rsync:// daemon (--daemon)
//   - act as the server-side of a remote-shell transfer (--server)
//   - act as the client CLI driving either of the above
package maincmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/oferchen/rsync-sub027/internal/bwlimit"
	"github.com/oferchen/rsync-sub027/internal/metrics"
	"github.com/oferchen/rsync-sub027/internal/rsyncdconfig"
	"github.com/oferchen/rsync-sub027/internal/rsyncos"
	"github.com/oferchen/rsync-sub027/internal/rsyncstats"
	"github.com/oferchen/rsync-sub027/rsyncd"
	"github.com/prometheus/client_golang/prometheus"
)

// MainArgs is Main with stdio passed positionally (argv[0] included in
// args) instead of bundled into an *rsyncos.Env, for callers that re-exec
// themselves as a remote-shell or daemon subprocess and so never build an
// Env of their own.
func MainArgs(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, cfg *rsyncdconfig.Config) (*rsyncstats.TransferStats, error) {
	osenv := &rsyncos.Env{Stdin: stdin, Stdout: stdout, Stderr: stderr, Verbose: true}
	return Main(ctx, osenv, args, cfg)
}

func version(osenv *rsyncos.Env) {
	osenv.Logf("rsync-sub027, pid %d", os.Getpid())
}

// Main is the single entry point both cmd/gorsync and tests drive: it
// parses args into rsyncopts.Options, then dispatches to the daemon
// listener, the --server connection handler, or the client CLI.
func Main(ctx context.Context, osenv *rsyncos.Env, args []string, cfg *rsyncdconfig.Config) (*rsyncstats.TransferStats, error) {
	osenv.Logf("Main(args=%q)", args)

	opts, remaining, err := parseClientArgs(args[1:])
	if err != nil {
		return nil, err
	}

	// calling convention: server mode over remote shell or stdio
	// Example: --server --sender -vlogDtpre.iLsfxCIvu . .
	if opts.Server() {
		srv, err := rsyncd.NewServer(nil, rsyncd.WithStderr(osenv.Stderr))
		if err != nil {
			return nil, err
		}

		if len(remaining) < 2 {
			return nil, fmt.Errorf("invalid args: at least one directory required")
		}
		if got, want := remaining[0], "."; got != want {
			return nil, fmt.Errorf("protocol error: got %q, expected %q", got, want)
		}
		paths := remaining[1:]
		if opts.Verbose() {
			osenv.Logf("paths: %q", paths)
		}
		if !opts.Sender() {
			for _, path := range paths {
				if err := os.MkdirAll(path, 0755); err != nil {
					return nil, err
				}
			}
		}

		conn := srv.NewConnection(osenv.Stdin, osenv.Stdout)
		return nil, srv.HandleConn(nil, conn, paths, opts, true)
	}

	if !opts.Daemon() {
		return clientMain(ctx, osenv, opts, remaining)
	}

	// calling convention: start a TCP rsync:// daemon
	if cfg == nil {
		var cfgErr error
		cfg, _, cfgErr = rsyncdconfig.FromDefaultFiles()
		if cfgErr != nil {
			if os.IsNotExist(cfgErr) {
				return nil, fmt.Errorf("no rsyncd config file found: %v", cfgErr)
			}
			return nil, cfgErr
		}
	}

	if len(cfg.Listeners) != 1 || cfg.Listeners[0].Rsyncd == "" {
		return nil, fmt.Errorf("not precisely 1 rsyncd listener specified")
	}
	listenAddr := cfg.Listeners[0].Rsyncd

	version(osenv)
	osenv.Logf("%d rsync modules configured", len(cfg.Modules))
	for _, mod := range cfg.Modules {
		osenv.Logf("rsync module %q with path %s configured", mod.Name, mod.Path)
	}

	srvOpts := []rsyncd.Option{
		rsyncd.WithStderr(osenv.Stderr),
		rsyncd.WithMetrics(metrics.NewRegistry(prometheus.DefaultRegisterer)),
	}
	if cfg.BwLimit != "" {
		rate, unlimited, err := bwlimit.ParseRate(cfg.BwLimit)
		if err != nil {
			return nil, fmt.Errorf("parsing bwlimit %q: %w", cfg.BwLimit, err)
		}
		if !unlimited {
			srvOpts = append(srvOpts, rsyncd.WithBWLimit(bwlimit.New(rate, 0)))
		}
	}

	srv, err := rsyncd.NewServer(cfg.Modules, srvOpts...)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	osenv.Logf("rsync daemon listening on rsync://%s", ln.Addr())
	return nil, srv.Serve(ctx, ln)
}
