package rsyncwire

// SumHead describes the signature layout for one file transfer, sent by
// the receiver before it starts generating the signature. Field names
// and wire order match upstream rsync's generator.c:write_sum_head /
// receiver.c:read_sum_head.
type SumHead struct {
	ChecksumCount   int32
	BlockLength     int32
	ChecksumLength  int32
	RemainderLength int32
}

func (s *SumHead) ReadFrom(c *Conn) error {
	var err error
	if s.ChecksumCount, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.BlockLength, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.ChecksumLength, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.RemainderLength, err = c.ReadInt32(); err != nil {
		return err
	}
	return nil
}

func (s *SumHead) WriteTo(c *Conn) error {
	if err := c.WriteInt32(s.ChecksumCount); err != nil {
		return err
	}
	if err := c.WriteInt32(s.BlockLength); err != nil {
		return err
	}
	if err := c.WriteInt32(s.ChecksumLength); err != nil {
		return err
	}
	if err := c.WriteInt32(s.RemainderLength); err != nil {
		return err
	}
	return nil
}
