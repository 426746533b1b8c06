package maincmd

import (
	"github.com/DavidGamba/go-getoptions"

	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
)

// ParseClientArgs exposes parseClientArgs to the public rsyncclient
// package.
func ParseClientArgs(args []string) (*rsyncopts.Options, []string, error) {
	return parseClientArgs(args)
}

// parseClientArgs interprets the process's own argv into an
// *rsyncopts.Options plus the remaining positional source/dest
// arguments. Sibling of rsyncd.parseServerArgs (not shared across
// packages since the daemon-side flag set is a subset of the client's
// full one), grounded in the teacher's go-getoptions usage in
// internal/rsyncd/rsyncd.go.
func parseClientArgs(args []string) (*rsyncopts.Options, []string, error) {
	opts := rsyncopts.New()

	opt := getoptions.New()
	opt.SetMode(getoptions.Bundling)

	server := opt.Bool("server", false)
	senderFlag := opt.Bool("sender", false)
	daemon := opt.Bool("daemon", false)
	group := opt.Bool("group", false, opt.Alias("g"))
	owner := opt.Bool("owner", false, opt.Alias("o"))
	links := opt.Bool("links", false, opt.Alias("l"))
	perms := opt.Bool("perms", false, opt.Alias("p"))
	devices := opt.Bool("D", false)
	times := opt.Bool("times", false, opt.Alias("t"))
	hardLinks := opt.Bool("hard-links", false, opt.Alias("H"))
	recurse := opt.Bool("recursive", false, opt.Alias("r"))
	archive := opt.Bool("archive", false, opt.Alias("a"))
	dryRun := opt.Bool("dry-run", false, opt.Alias("n"))
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	deleteFlag := opt.Bool("delete", false)
	wholeFile := opt.Bool("whole-file", false, opt.Alias("W"))
	blockSize := opt.Int("block-size", 0, opt.Alias("B"))
	shell := opt.String("rsh", "", opt.Alias("e"))
	bwlimit := opt.String("bwlimit", "")

	remaining, err := opt.Parse(args)
	if err != nil {
		return nil, nil, err
	}

	if *server {
		opts.SetServer()
	}
	if *senderFlag {
		opts.SetSender()
	}
	if *daemon {
		opts.SetDaemon()
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
	opts.WholeFile = *wholeFile
	opts.BlockSize = *blockSize
	opts.SetShellCommand(*shell)
	opts.BWLimit = *bwlimit
	_ = recurse // recursion is always on; no flat-copy mode is implemented

	return opts, remaining, nil
}

// clientHelp returns the usage text printed when no source/dest
// arguments were given, rsync(1)'s abbreviated --help banner.
func clientHelp() string {
	return `rsync [OPTION]... SRC... [DEST]

  -v, --verbose       increase verbosity
  -a, --archive       archive mode (-rlptgoD)
  -r, --recursive     recurse into directories
  -l, --links         copy symlinks as symlinks
  -p, --perms         preserve permissions
  -t, --times         preserve modification times
  -g, --group         preserve group
  -o, --owner         preserve owner
  -D                  preserve device and special files
  -H, --hard-links    preserve hard links
  -n, --dry-run       show what would be transferred
  -W, --whole-file    skip delta transfer, send whole files
      --delete        delete extraneous files from destination
  -e, --rsh=COMMAND   remote shell to use
      --bwlimit=RATE  limit socket I/O bandwidth`
}
