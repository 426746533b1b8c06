// Package rsync defines the protocol-level constants shared by every
// subpackage of this module: protocol version bounds, compatibility
// flags, and file-list flag bits.
package rsync

// Protocol version bounds understood by this implementation, matching
// upstream rsync's supported negotiation range.
const (
	ProtocolOldest = 28
	ProtocolNewest = 32

	// ProtocolVersion is the version this implementation offers during
	// negotiation before intersecting with the peer's advertised range.
	ProtocolVersion = ProtocolNewest
)

// Compatibility bitflags exchanged during the binary handshake
// (protocol >= 30). Unknown high bits must be preserved and echoed.
const (
	CF_INC_RECURSE        = 1 << 0
	CF_SYMLINK_TIMES      = 1 << 1
	CF_SYMLINK_ICONV      = 1 << 2
	CF_SAFE_FLIST         = 1 << 3
	CF_AVOID_XATTR_OPTIM  = 1 << 4
	CF_CHKSUM_SEED_FIX    = 1 << 5
	CF_ID0_NAMES          = 1 << 6
	CF_VARINT_FLIST_FLAGS = 1 << 7
)

// File-list entry flag bits, matching the constants historically
// defined by github.com/kaiakz/rsync-os/rsync and upstream rsync's
// flist.c.
const (
	FLIST_TOP_LEVEL    = 1 << 0
	FLIST_MODE_SAME    = 1 << 1
	FLIST_RDEV_SAME    = 1 << 2
	FLIST_NAME_SAME    = 1 << 5
	FLIST_NAME_LONG    = 1 << 6
	FLIST_TIME_SAME    = 1 << 7
	FLIST_UID_SAME     = 1 << 8
	FLIST_GID_SAME     = 1 << 9
	FLIST_HLINKED      = 1 << 10
	FLIST_HLINK_FIRST  = 1 << 11
	NDX_FLIST_EOF      = -1
	NDX_FLIST_OFFSET   = -101
	NDX_DONE           = -1
)

// Exit codes, canonical and interoperable with upstream rsync.
const (
	ExitSuccess            = 0
	ExitSyntaxError        = 1
	ExitProtocolIncompat   = 2
	ExitSocketIO           = 10
	ExitFileIO             = 11
	ExitProtocolDataStream = 12
	ExitPartialTransfer    = 23
	ExitVanished           = 24
	ExitMaxDelete          = 25
	ExitTimeout            = 30
)

// DeleteMode selects when deletions on the receiver are performed
// relative to the transfer.
type DeleteMode int

const (
	DeleteNone DeleteMode = iota
	DeleteBefore
	DeleteDuring
	DeleteAfter
	DeleteDelay
)
