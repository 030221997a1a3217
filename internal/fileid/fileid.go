// Package fileid provides a deterministic image ID from a file path so runs over the same input can be grouped.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "image:"

// ImageID returns a stable ID for the given absolute image path.
// Same path always yields the same ID.
func ImageID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}
