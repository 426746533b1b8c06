// Tool gorsync is an rsync-compatible client and daemon.
package main

import (
	"context"
	"log"
	"os"

	"github.com/oferchen/rsync-sub027/internal/maincmd"
	"github.com/oferchen/rsync-sub027/internal/rsyncos"
)

func main() {
	osenv := &rsyncos.Env{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Verbose: true,
	}
	if _, err := maincmd.Main(context.Background(), osenv, os.Args, nil); err != nil {
		log.Fatal(err)
	}
}
