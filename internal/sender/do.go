package sender

import (
	"github.com/oferchen/rsync-sub027/internal/filter"
	"github.com/oferchen/rsync-sub027/internal/rsyncstats"
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// Do drives one connection's full send side: build and transmit the
// file list (after applying the sender-scoped exclusion rules), then
// answer signature requests with delta streams until the generator
// sends its closing -1. rsync's main.c:do_sender.
func (st *Transfer) Do(crd *rsyncwire.CountingReader, cwr *rsyncwire.CountingWriter, paths []string, exclusionRules []filter.Rule) (*rsyncstats.TransferStats, error) {
	fileList, err := st.BuildFileList(paths)
	if err != nil {
		return nil, err
	}

	fileList = applyExclusions(fileList, exclusionRules)

	var size int64
	for _, f := range fileList {
		size += f.Size
	}

	if err := st.SendFileList(fileList); err != nil {
		return nil, err
	}

	reqs, err := st.recvRequests()
	if err != nil {
		return nil, err
	}
	if err := st.sendFiles(fileList, reqs); err != nil {
		return nil, err
	}

	stats := &rsyncstats.TransferStats{
		Read:    crd.BytesRead,
		Written: cwr.BytesWritten,
		Size:    size,
	}
	if err := st.Conn.WriteInt64(stats.Read); err != nil {
		return nil, err
	}
	if err := st.Conn.WriteInt64(stats.Written); err != nil {
		return nil, err
	}
	if err := st.Conn.WriteInt64(stats.Size); err != nil {
		return nil, err
	}

	if _, err := st.Conn.ReadInt32(); err != nil {
		return nil, err
	}

	return stats, nil
}

// applyExclusions drops entries the sender-scoped filter rules exclude,
// keeping the top-level root entry unconditionally (spec §4.11 rules
// never apply to the transfer root itself).
func applyExclusions(fileList []*File, rules []filter.Rule) []*File {
	if len(rules) == 0 {
		return fileList
	}
	eng := filter.New(rules, filter.Sender, "")
	kept := fileList[:0]
	for _, f := range fileList {
		if f.Name == "." {
			kept = append(kept, f)
			continue
		}
		if eng.Decide(f.Name, f.Mode&0040000 != 0) == filter.Exclude {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
