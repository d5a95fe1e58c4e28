// SPDX-License-Identifier: MIT

// Package m3u parses extended M3U playlists into candidate content
// records without materializing the whole feed in memory.
package m3u

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/normalize"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// Result is the parsed output of one playlist.
type Result struct {
	Channels []content.Channel
	Movies   []content.Movie
	EPGURL   string
	Warnings []string
}

// entry is one pending #EXTINF directive waiting for its URL line.
type entry struct {
	tvgID   string
	tvgName string
	logo    string
	group   string
	name    string
}

// Parse reads an M3U playlist from r in a streaming fashion. The first
// non-blank line must start with #EXTM3U or the whole parse is rejected;
// a playlist with per-entry damage still parses, with one warning per
// discarded entry.
func Parse(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)

	res := &Result{}
	// Channels indexed by dedup key (tvg-id, else normalized name) so a
	// second stream for the same channel becomes a variant, not a row.
	index := make(map[string]int)

	var pending *entry
	sawHeader := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !utf8.ValidString(line) {
			return nil, xerrors.Wrap(xerrors.ErrMalformedHeader, "m3u parse", nil)
		}

		if !sawHeader {
			if !strings.HasPrefix(line, "#EXTM3U") {
				return nil, xerrors.Wrap(xerrors.ErrMalformedHeader, "m3u parse", nil)
			}
			sawHeader = true
			res.EPGURL = attrValue(line, "url-tvg")
			if res.EPGURL == "" {
				res.EPGURL = attrValue(line, "x-tvg-url")
			}
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			if pending != nil {
				res.Warnings = append(res.Warnings,
					"discarded #EXTINF without URL: "+pending.name)
			}
			pending = parseExtinf(line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			// Other directives (#EXTGRP, #EXTVLCOPT, ...) are ignored.
			continue
		}

		// URL line.
		if pending == nil {
			continue
		}
		res.add(pending, line, index)
		pending = nil
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrParse, "m3u parse", err)
	}
	if !sawHeader {
		return nil, xerrors.Wrap(xerrors.ErrMalformedHeader, "m3u parse", nil)
	}
	if pending != nil {
		res.Warnings = append(res.Warnings,
			"discarded #EXTINF without URL: "+pending.name)
	}
	return res, nil
}

// ParseBytes parses an in-memory playlist.
func ParseBytes(data []byte) (*Result, error) {
	return Parse(bytes.NewReader(data))
}

// ParseFile streams a playlist from disk. Required for feeds with tens
// of thousands of entries; the file is never read into memory whole.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "m3u open", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

func (r *Result) add(e *entry, url string, index map[string]int) {
	name := e.name
	if name == "" {
		name = e.tvgName
	}

	if isMovie(e.group, url) {
		r.Movies = append(r.Movies, content.Movie{
			Title:     name,
			PosterURL: e.logo,
			StreamURL: url,
		})
		return
	}

	key := e.tvgID
	if key == "" {
		key = normalize.Title(name)
	}
	variant := content.ChannelVariant{Name: name, StreamURL: url}
	if key != "" {
		if i, ok := index[key]; ok {
			r.Channels[i].Variants = append(r.Channels[i].Variants, variant)
			r.Channels[i].VariantCount = len(r.Channels[i].Variants)
			return
		}
		index[key] = len(r.Channels)
	}
	r.Channels = append(r.Channels, content.Channel{
		Name:         name,
		LogoURL:      e.logo,
		TvgID:        e.tvgID,
		Group:        e.group,
		Variants:     []content.ChannelVariant{variant},
		VariantCount: 1,
	})
}

// movieGroups are group-title fragments that mark VOD categories.
var movieGroups = []string{"movie", "vod", "film", "cinema"}

// movieExts are container extensions that only appear on VOD assets;
// live streams use .ts / .m3u8 and must not match.
var movieExts = []string{".mp4", ".mkv", ".avi", ".mov", ".m4v", ".wmv", ".flv", ".webm", ".mpg", ".mpeg"}

func isMovie(group, url string) bool {
	g := strings.ToLower(group)
	for _, frag := range movieGroups {
		if strings.Contains(g, frag) {
			return true
		}
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range movieExts {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}

// parseExtinf tokenizes one #EXTINF line: the duration, a run of
// key="value" attributes, then the display name after the comma that
// follows the final attribute (attribute values may themselves contain
// commas, so the naive last-comma split is wrong).
func parseExtinf(line string) *entry {
	e := &entry{}
	body := strings.TrimPrefix(line, "#EXTINF:")

	// Skip the duration token (may be negative or fractional).
	i := 0
	for i < len(body) && body[i] != ' ' && body[i] != ',' {
		i++
	}
	rest := body[i:]

	attrEnd := 0
	for {
		k, v, next, ok := nextAttr(rest, attrEnd)
		if !ok {
			break
		}
		switch k {
		case "tvg-id":
			e.tvgID = v
		case "tvg-name":
			e.tvgName = v
		case "tvg-logo":
			e.logo = v
		case "group-title":
			e.group = v
		}
		attrEnd = next
	}

	if j := strings.Index(rest[attrEnd:], ","); j >= 0 {
		e.name = strings.TrimSpace(rest[attrEnd+j+1:])
	}
	return e
}

// nextAttr scans rest[from:] for the next key="value" pair. Returns the
// key, value, and the offset just past the closing quote.
func nextAttr(rest string, from int) (key, val string, next int, ok bool) {
	s := rest[from:]
	eq := strings.Index(s, `="`)
	if eq < 0 {
		return "", "", 0, false
	}
	// A comma before the next attribute means attributes are over and
	// the display name has begun.
	if c := strings.Index(s[:eq], ","); c >= 0 {
		return "", "", 0, false
	}
	keyStart := eq
	for keyStart > 0 && s[keyStart-1] != ' ' && s[keyStart-1] != '\t' {
		keyStart--
	}
	close := strings.Index(s[eq+2:], `"`)
	if close < 0 {
		return "", "", 0, false
	}
	key = strings.TrimSpace(s[keyStart:eq])
	val = s[eq+2 : eq+2+close]
	return key, val, from + eq + 2 + close + 1, true
}

// attrValue extracts a key="value" attribute from a header line.
func attrValue(line, key string) string {
	prefix := key + `="`
	if i := strings.Index(line, prefix); i >= 0 {
		i += len(prefix)
		if j := strings.Index(line[i:], `"`); j >= 0 {
			return line[i : i+j]
		}
	}
	return ""
}

// Batch converts the parse result into the candidate shape the import
// coordinator consumes.
func (r *Result) Batch() *content.Batch {
	b := &content.Batch{EPGURL: r.EPGURL, Warnings: r.Warnings}
	for i := range r.Channels {
		ch := r.Channels[i]
		b.Candidates = append(b.Candidates, content.Candidate{Kind: content.KindChannel, Channel: &ch})
	}
	for i := range r.Movies {
		m := r.Movies[i]
		b.Candidates = append(b.Candidates, content.Candidate{Kind: content.KindMovie, Movie: &m})
	}
	return b
}
