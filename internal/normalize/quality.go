// SPDX-License-Identifier: MIT

package normalize

import "strings"

// AssessQuality scores a stream on a 1..5 scale from resolution keywords
// found in its URL or display name. Callers may use it to re-rank group
// alternates; grouping itself never applies it automatically.
func AssessQuality(streamURL, name string) int {
	haystack := strings.ToLower(streamURL + " " + name)
	switch {
	case containsAny(haystack, "4k", "2160p", "uhd"):
		return 5
	case containsAny(haystack, "1080p", "fhd"):
		return 4
	case containsAny(haystack, "720p", "hd"):
		return 3
	case containsAny(haystack, "480p", "sd"):
		return 2
	default:
		return 1
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
