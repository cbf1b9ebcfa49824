// Package idhash computes deterministic identifiers so that retried
// operations always address the same row.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRecordID computes a deterministic transaction record id.
// Formula: SHA256(batch_id|kind)
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(batchID, kind string) string {
	data := fmt.Sprintf("%s|%s", batchID, kind)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
