//go:build linux || darwin

package receiver

import (
	"io/fs"

	"github.com/oferchen/rsync-sub027/internal/filelist"
)

// applyNonRegular creates every directory, symlink and device node
// named in fileList directly from the metadata already exchanged
// during file-list transfer; none of these go through delta transfer.
// rsync's generator.c walks the same three cases inline alongside its
// signature-request loop.
func (rt *Transfer) applyNonRegular(fileList []*File) error {
	for _, f := range fileList {
		if isTopDir(f) {
			continue
		}
		switch {
		case filelist.IsDir(f.Mode):
			if err := rt.DestRoot.Mkdir(f.Name, fs.FileMode(f.Mode&0777)); err != nil {
				rt.Logger.Printf("mkdir %s: %v", f.Name, err)
				continue
			}
			if err := rt.DestRoot.SetMetadata(f.Name, metadataFor(rt, f)); err != nil {
				continue
			}

		case filelist.IsSymlink(f.Mode) && rt.Opts.PreserveLinks():
			if err := rt.DestRoot.Symlink(f.LinkTarget, f.Name); err != nil {
				rt.Logger.Printf("symlink %s -> %s: %v", f.Name, f.LinkTarget, err)
				continue
			}

		case filelist.IsDevice(f.Mode) && rt.Opts.PreserveDevices():
			if err := rt.DestRoot.Mknod(f.Name, f.Mode, uint64(f.Rdev)); err != nil {
				rt.Logger.Printf("mknod %s: %v", f.Name, err)
				continue
			}
		}
	}
	return nil
}
