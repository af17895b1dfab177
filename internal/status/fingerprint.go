package status

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the mutable fields of a snapshot: process
// (name, running, pid) tuples and PRD (name, status) pairs. Timestamps and
// the rest of the snapshot are deliberately excluded so two reads of an
// unchanged project collide, which is what suppresses no-op broadcasts.
func Fingerprint(s Snapshot) uint64 {
	digest := xxhash.New()
	for _, process := range s.Processes {
		_, _ = digest.WriteString(string(process.Name))
		_, _ = digest.WriteString("|")
		_, _ = digest.WriteString(strconv.FormatBool(process.Running))
		_, _ = digest.WriteString("|")
		_, _ = digest.WriteString(strconv.Itoa(process.Pid))
		_, _ = digest.WriteString("\n")
	}
	for _, item := range s.PRDs {
		_, _ = digest.WriteString(item.Name)
		_, _ = digest.WriteString("|")
		_, _ = digest.WriteString(string(item.Status))
		_, _ = digest.WriteString("\n")
	}
	return digest.Sum64()
}
