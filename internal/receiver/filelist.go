package receiver

import "github.com/oferchen/rsync-sub027/internal/filelist"

// ReceiveFileList reads the sender's full file list off the wire.
// rsync's main.c:recv_file_list.
func (rt *Transfer) ReceiveFileList() ([]*File, error) {
	return filelist.ReadList(rt.Conn)
}
