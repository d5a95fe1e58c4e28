// SPDX-License-Identifier: MIT

package xmltv

import (
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/normalize"
)

// NameIndex maps normalized channel display names to guide channel IDs.
// Built from a parsed guide; used to link playlist channels that carry
// no tvg-id to their guide entry by name.
func (r *Result) NameIndex() map[string]string {
	out := make(map[string]string, len(r.DisplayNames))
	for id, names := range r.DisplayNames {
		for _, name := range names {
			if key := normalize.Title(name); key != "" {
				out[key] = id
			}
		}
	}
	return out
}

// FindBest looks up the guide channel ID closest to name. An exact
// normalized match wins; otherwise the entry within maxDist edit
// distance is returned, if any.
func FindBest(name string, nameToID map[string]string, maxDist int) (string, bool) {
	key := normalize.Title(name)
	if key == "" {
		return "", false
	}
	if id, ok := nameToID[key]; ok {
		return id, true
	}

	bestID := ""
	bestDist := maxDist + 1
	for k, id := range nameToID {
		if d := levenshtein(key, k); d < bestDist {
			bestDist = d
			bestID = id
		}
	}
	if bestDist <= maxDist {
		return bestID, true
	}
	return "", false
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	lenA, lenB := len(ra), len(rb)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	prev := make([]int, lenB+1)
	cur := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}
	for i := 1; i <= lenA; i++ {
		cur[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lenB]
}
