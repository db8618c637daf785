package journal

import (
	"fmt"
	"hash/crc32"
)

// CalculateChecksum computes the CRC32-IEEE of every field but Checksum.
func CalculateChecksum(e Event) uint32 {
	data := fmt.Sprintf("%d|%s|%s|%s|%d|%d|%d",
		e.Seq, e.Type, e.Revision, e.Source, e.MachineID, e.Jobs, e.Timestamp)
	return crc32.ChecksumIEEE([]byte(data))
}

// VerifyChecksum reports whether the stored checksum matches.
func VerifyChecksum(e Event) bool {
	return e.Checksum == CalculateChecksum(e)
}
