// Package rsyncclient exposes the client side of a transfer as an
// embeddable library: construct a Client from rsync(1)-style flags,
// then Run it against any io.ReadWriter carrying an rsync server
// conversation, whether that is a subprocess's stdio, a direct network
// connection, or an in-process pipe connected to an rsyncd.Server.
// Grounded in the public API contract implied by the package's own test
// file (New/WithSender/Client.Run), layered over internal/maincmd's
// ClientRun, which performs the same role for the rsync CLI binary.
package rsyncclient

import (
	"context"
	"io"

	"github.com/oferchen/rsync-sub027/internal/maincmd"
	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
	"github.com/oferchen/rsync-sub027/internal/rsyncos"
)

// Option configures a Client at construction time, applied after the
// command-line-style args have been parsed.
type Option func(*rsyncopts.Options)

// WithSender makes the client the sending side of the transfer (rsync's
// --sender flag): paths passed to Run then name local sources to push
// instead of a local destination to receive into.
func WithSender() Option {
	return func(o *rsyncopts.Options) { o.SetSender() }
}

// Client drives one client-role rsync conversation per Run call.
type Client struct {
	opts   *rsyncopts.Options
	stderr io.Writer
}

// New parses args the way the rsync(1) CLI would (e.g. "-av",
// "--delete") and returns a Client ready to Run.
func New(args []string, opts ...Option) (*Client, error) {
	o, _, err := maincmd.ParseClientArgs(args)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{opts: o, stderr: io.Discard}, nil
}

// Run drives the client side of one transfer over conn, sending or
// receiving paths depending on whether WithSender was given.
func (c *Client) Run(ctx context.Context, conn io.ReadWriter, paths []string) error {
	osenv := rsyncos.Std{Stderr: c.stderr}
	_, err := maincmd.ClientRun(osenv, c.opts, conn, paths, true)
	return err
}
