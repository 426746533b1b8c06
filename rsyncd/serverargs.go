package rsyncd

import (
	"github.com/DavidGamba/go-getoptions"

	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
)

// ParseServerArgs exposes parseServerArgs to tests and callers outside
// this package that drive HandleConn directly against a hand-built flag
// list instead of a real daemon or --server subprocess.
func ParseServerArgs(flags []string) (*rsyncopts.Options, []string, error) {
	return parseServerArgs(flags)
}

// parseServerArgs interprets the flag list an rsync daemon client sends
// after selecting a module (the command line tridge rsync would have
// run locally) into an *rsyncopts.Options plus the remaining positional
// arguments ("." followed by the requested paths). Grounded in the
// teacher's internal/rsyncd/rsyncd.go, which parses this same flag list
// with go-getoptions in bundling mode. Parses the role flags, -a and the
// preserve-* flags, dry-run, verbose, delete and block-size; other
// Options fields (checksum choice, whole-file, bwlimit) are not parsed.
func parseServerArgs(flags []string) (*rsyncopts.Options, []string, error) {
	opts := rsyncopts.New()

	opt := getoptions.New()
	opt.SetMode(getoptions.Bundling)

	server := opt.Bool("server", false)
	senderFlag := opt.Bool("sender", false)
	group := opt.Bool("group", false, opt.Alias("g"))
	owner := opt.Bool("owner", false, opt.Alias("o"))
	links := opt.Bool("links", false, opt.Alias("l"))
	perms := opt.Bool("perms", false, opt.Alias("p"))
	devices := opt.Bool("D", false)
	recurse := opt.Bool("recursive", false, opt.Alias("r"))
	archive := opt.Bool("archive", false, opt.Alias("a"))
	times := opt.Bool("times", false, opt.Alias("t"))
	hardLinks := opt.Bool("hard-links", false, opt.Alias("H"))
	dryRun := opt.Bool("dry-run", false, opt.Alias("n"))
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	deleteFlag := opt.Bool("delete", false)
	blockSize := opt.Int("block-size", 0, opt.Alias("B"))

	remaining, err := opt.Parse(flags)
	if err != nil {
		return nil, nil, err
	}

	if *server {
		opts.SetServer()
	}
	if *senderFlag {
		opts.SetSender()
	}
	if *archive {
		*links, *perms, *times, *group, *owner, *recurse = true, true, true, true, true, true
		opts.SetPreserveDevices(true)
		opts.SetPreserveSpecials(true)
	}
	opts.SetPreserveGid(*group)
	opts.SetPreserveUid(*owner)
	opts.SetPreserveLinks(*links)
	opts.SetPreservePerms(*perms)
	if *devices {
		opts.SetPreserveDevices(true)
		opts.SetPreserveSpecials(true)
	}
	opts.SetPreserveMTimes(*times)
	opts.SetPreserveHardLinks(*hardLinks)
	opts.SetDryRun(*dryRun)
	opts.SetVerbose(*verbose)
	if *deleteFlag {
		opts.SetDeleteMode(rsyncopts.DeleteDuring)
	}
	opts.BlockSize = *blockSize
	_ = recurse // recursion is implicit: the file list already reflects it

	return opts, remaining, nil
}
