// SPDX-License-Identifier: MIT

package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	stablePrefix = "sh1-"
	randomPrefix = "rnd-"
)

// StableID creates a deterministic, collision-resistant identity from a
// title and its source. Using a hash ensures the ID is stable across
// repeated imports even when attribute order or casing shifts, and the
// source component keeps identical titles from different providers apart
// so cross-source matching stays an explicit grouping decision.
//
// A title that normalizes to the empty string gets a random ID: such
// records can never be deduplicated, which is the fail-safe choice over
// silently merging unrelated garbage entries.
func StableID(title, sourceID string) string {
	key := Title(title)
	if key == "" {
		return randomPrefix + uuid.NewString()
	}
	sum := sha256.Sum256([]byte(key + "\x00" + sourceID))
	return stablePrefix + hex.EncodeToString(sum[:])
}

// IsRandomID reports whether id was generated from an empty normalized
// title and therefore never participates in dedup lookups.
func IsRandomID(id string) bool {
	return strings.HasPrefix(id, randomPrefix)
}
