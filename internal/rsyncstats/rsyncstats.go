// Package rsyncstats carries the whole-transfer byte counters exchanged
// at the end of a session, matching the fields the teacher's
// internal/receiver/do.go report function reads off the wire
// (rsync/main.c:report: total bytes read, total bytes written, total
// file size).
package rsyncstats

import "fmt"

// TransferStats summarizes one completed transfer.
type TransferStats struct {
	Read    int64 // bytes read from the network connection
	Written int64 // bytes written to the network connection
	Size    int64 // total size of the files in the transfer
}

func (s TransferStats) String() string {
	return fmt.Sprintf("sent %d bytes  received %d bytes  total size %d", s.Written, s.Read, s.Size)
}
