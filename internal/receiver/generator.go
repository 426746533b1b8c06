package receiver

import (
	"os"

	"github.com/oferchen/rsync-sub027/internal/filelist"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// GenerateFiles is the generator half of a receiving connection: for
// every plain file in fileList it computes a signature of whatever
// already exists at the destination (or an empty signature for a new
// file) and sends it to the sender, which uses it to build the delta
// RecvFiles then applies. Named and shaped after rsync's generator.c
// main loop, which upstream runs in the same process as the receiver.
func (rt *Transfer) GenerateFiles(fileList []*File) error {
	for idx, f := range fileList {
		if isTopDir(f) || filelist.IsDir(f.Mode) || filelist.IsSymlink(f.Mode) || filelist.IsDevice(f.Mode) {
			continue
		}
		if err := rt.generateFile(int32(idx), f); err != nil {
			rt.IOErrors++
			rt.Logger.Printf("generating signature for %s: %v", f.Name, err)
			continue
		}
	}
	return rt.Conn.WriteInt32(-1)
}

func (rt *Transfer) generateFile(idx int32, f *File) error {
	sig, err := rt.localSignature(f)
	if err != nil {
		return err
	}
	if err := rt.Conn.WriteInt32(idx); err != nil {
		return err
	}
	return sig.WriteTo(rt.Conn)
}

// localSignature computes a signature of the file currently at
// f.Name relative to DestRoot, the basis the sender will diff against.
// A missing destination file yields an empty signature (every block
// forces a literal), matching spec §9 "new files have no basis".
func (rt *Transfer) localSignature(f *File) (*signature.FileSignature, error) {
	blockLen := rt.blockLength(f)
	file, _, err := rt.DestRoot.OpenRead(f.Name)
	if err != nil {
		if os.IsNotExist(err) {
			return &signature.FileSignature{
				BlockLength:  blockLen,
				StrongLength: rt.Algorithm.Size(),
				Algorithm:    rt.Algorithm,
			}, nil
		}
		return nil, err
	}
	defer file.Close()

	return signature.Generate(file, signature.LayoutParams{
		BlockLength: blockLen,
		Algorithm:   rt.Algorithm,
		Seed:        rt.Seed,
		SeedFix:     rt.SeedFix,
	})
}
