// SPDX-License-Identifier: MIT

package xmltv

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

const sampleGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="ch1.example">
    <display-name>Channel One</display-name>
    <display-name>Ch 1</display-name>
  </channel>
  <programme start="20260830100000 +0000" stop="20260830103000 +0000" channel="ch1.example">
    <title>Morning Show</title>
    <desc>News and weather.</desc>
    <category>News</category>
    <unknown-extension>ignored</unknown-extension>
  </programme>
  <programme start="20260830103000 +0000" stop="20260830110000 +0000" channel="ch1.example">
    <title>Quiz Hour</title>
  </programme>
</tv>
`

func TestParseGuide(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleGuide))
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	want := content.EPGEntry{
		ChannelID: "ch1.example",
		Title:     "Morning Show",
		Desc:      "News and weather.",
		Category:  "News",
		Start:     time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Stop:      time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, res.Entries[0]); diff != "" {
		t.Errorf("first programme mismatch (-want +got):\n%s", diff)
	}

	// Missing desc/category are optional.
	second := res.Entries[1]
	assert.Empty(t, second.Desc)
	assert.Empty(t, second.Category)

	assert.Equal(t, []string{"Channel One", "Ch 1"}, res.DisplayNames["ch1.example"])
	assert.Empty(t, res.Warnings)
}

func TestParseBadTimestampSkipsProgramme(t *testing.T) {
	guide := `<tv>
  <programme start="not-a-time" stop="20260830103000 +0000" channel="c">
    <title>Broken</title>
  </programme>
  <programme start="20260830103000 +0000" stop="20260830110000 +0000" channel="c">
    <title>Fine</title>
  </programme>
</tv>`
	res, err := Parse(strings.NewReader(guide))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Fine", res.Entries[0].Title)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Broken")
}

func TestParseStartNotBeforeStopSkipped(t *testing.T) {
	guide := `<tv>
  <programme start="20260830110000 +0000" stop="20260830110000 +0000" channel="c">
    <title>Zero Length</title>
  </programme>
</tv>`
	res, err := Parse(strings.NewReader(guide))
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Len(t, res.Warnings, 1)
}

func TestParseZonelessTimestamp(t *testing.T) {
	guide := `<tv>
  <programme start="20260830100000" stop="20260830103000" channel="c">
    <title>UTC Assumed</title>
  </programme>
</tv>`
	res, err := Parse(strings.NewReader(guide))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, time.UTC, res.Entries[0].Start.Location())
}

func TestParseNotXML(t *testing.T) {
	_, err := Parse(strings.NewReader("#EXTM3U\nnot xml at all"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrParse))
}

func TestParseMissingTVRoot(t *testing.T) {
	_, err := Parse(strings.NewReader(`<html><body>nope</body></html>`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrParse))
}

func TestNameIndexAndFindBest(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleGuide))
	require.NoError(t, err)

	idx := res.NameIndex()
	id, ok := FindBest("The Channel One", idx, 2)
	require.True(t, ok, "article-stripped exact match expected")
	assert.Equal(t, "ch1.example", id)

	id, ok = FindBest("Channel 0ne", idx, 2)
	require.True(t, ok, "fuzzy match within distance expected")
	assert.Equal(t, "ch1.example", id)

	_, ok = FindBest("Completely Different", idx, 2)
	assert.False(t, ok)
}

func TestFormatTimeRoundTrip(t *testing.T) {
	orig := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	parsed, err := parseXMLTVTime(FormatTime(orig))
	require.NoError(t, err)
	assert.True(t, orig.Equal(parsed))
}
