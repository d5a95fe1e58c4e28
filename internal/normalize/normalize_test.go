// SPDX-License-Identifier: MIT

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"article stripped", "The Matrix", "matrix"},
		{"already normal", "matrix", "matrix"},
		{"punctuation", "Spider-Man: Far From Home", "spider man far from home"},
		{"an article", "An American Tail", "american tail"},
		{"a article", "A Quiet Place", "quiet place"},
		{"article strip applies once", "The A Team", "a team"},
		{"uppercase and spaces", "  BREAKING   BAD  ", "breaking bad"},
		{"digits kept", "Blade Runner 2049", "blade runner 2049"},
		{"empty", "", ""},
		{"garbage only", "!!! --- ???", ""},
		{"unicode stripped", "Amélie", "am lie"},
		{"article inside word untouched", "Theory of Everything", "theory of everything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Title(tc.in))
		})
	}
}

func TestTitleIdempotent(t *testing.T) {
	for _, s := range []string{"The Matrix", "Spider-Man: Far From Home", "  x  "} {
		once := Title(s)
		assert.Equal(t, once, Title(once))
	}
}

func TestStableIDDeterministic(t *testing.T) {
	a := StableID("Breaking Bad", "sourceA")
	b := StableID("Breaking Bad", "sourceA")
	assert.Equal(t, a, b)
}

func TestStableIDSourceScoped(t *testing.T) {
	a := StableID("Breaking Bad", "sourceA")
	b := StableID("Breaking Bad", "sourceB")
	assert.NotEqual(t, a, b)
}

func TestStableIDNormalizesFirst(t *testing.T) {
	assert.Equal(t, StableID("The Matrix", "s"), StableID("matrix", "s"))
}

func TestStableIDEmptyTitleNeverDedups(t *testing.T) {
	a := StableID("", "sourceA")
	b := StableID("", "sourceA")
	assert.NotEqual(t, a, b, "empty-title records must never collide")
	assert.True(t, IsRandomID(a))
	assert.False(t, IsRandomID(StableID("Breaking Bad", "sourceA")))
}

func TestAssessQuality(t *testing.T) {
	cases := []struct {
		url, name string
		want      int
	}{
		{"http://x/stream_4k.ts", "", 5},
		{"http://x/a.ts", "Movie 2160p", 5},
		{"http://x/a.ts", "Movie 1080p", 4},
		{"http://x/fhd/a.ts", "", 4},
		{"http://x/a.ts", "Channel HD", 3},
		{"http://x/720p/a.ts", "", 3},
		{"http://x/a.ts", "Channel SD", 2},
		{"http://x/480p.ts", "", 2},
		{"http://x/a.ts", "Channel", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AssessQuality(tc.url, tc.name), "%s %s", tc.url, tc.name)
	}
}
