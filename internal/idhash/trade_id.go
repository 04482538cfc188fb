package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(job_id|seq|entry_time_ms|exit_time_ms)
// seq is the trade's position in close order, so partial exits of one
// position get distinct IDs. Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	jobID string,
	seq int,
	entryTimeMs int64,
	exitTimeMs int64,
) string {
	data := fmt.Sprintf("%s|%d|%d|%d",
		jobID,
		seq,
		entryTimeMs,
		exitTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
