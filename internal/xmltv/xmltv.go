// SPDX-License-Identifier: MIT

// Package xmltv parses XMLTV guide documents into programme entries,
// streaming over <programme> elements so a multi-day multi-channel guide
// never has to fit in memory at once.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

// maxXMLSize bounds guide documents; 50 MiB covers multi-week feeds.
const maxXMLSize = 50 * 1024 * 1024

// xmltvTimeLayout is the XMLTV date format: YYYYMMDDHHMMSS +ZZZZ.
const xmltvTimeLayout = "20060102150405 -0700"

// programme mirrors one <programme> element on the wire. Unknown child
// elements are ignored by the decoder.
type programme struct {
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr"`
	Channel  string   `xml:"channel,attr"`
	Title    string   `xml:"title"`
	Desc     string   `xml:"desc"`
	Category []string `xml:"category"`
}

type channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
}

// Result holds the parsed guide: programme entries keyed by the raw
// channel attribute, and the channel id → display names map used for
// joining against playlist tvg-ids.
type Result struct {
	Entries      []content.EPGEntry
	DisplayNames map[string][]string
	Warnings     []string
}

// Parse streams the XMLTV document from r. Individual programmes with
// malformed timestamps are skipped with a warning; a document that is
// not XML at all aborts the parse.
func Parse(r io.Reader) (*Result, error) {
	dec := xml.NewDecoder(io.LimitReader(r, maxXMLSize))
	dec.Strict = true
	// No entity expansion: untrusted feeds must not smuggle XXE payloads.
	dec.Entity = make(map[string]string)

	res := &Result{DisplayNames: make(map[string][]string)}
	sawTV := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xerrors.Wrap(xerrors.ErrParse, "xmltv parse", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "tv":
			sawTV = true
		case "channel":
			var ch channel
			if err := dec.DecodeElement(&ch, &start); err != nil {
				return nil, xerrors.Wrap(xerrors.ErrParse, "xmltv channel", err)
			}
			if ch.ID != "" {
				res.DisplayNames[ch.ID] = ch.DisplayName
			}
		case "programme":
			var p programme
			if err := dec.DecodeElement(&p, &start); err != nil {
				return nil, xerrors.Wrap(xerrors.ErrParse, "xmltv programme", err)
			}
			res.addProgramme(p)
		default:
			if err := dec.Skip(); err != nil && !errors.Is(err, io.EOF) {
				return nil, xerrors.Wrap(xerrors.ErrParse, "xmltv parse", err)
			}
		}
	}
	if !sawTV {
		return nil, xerrors.Wrap(xerrors.ErrParse, "xmltv parse",
			errors.New("missing <tv> root element"))
	}
	return res, nil
}

func (r *Result) addProgramme(p programme) {
	start, err := parseXMLTVTime(p.Start)
	if err != nil {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("programme %q on %s: bad start time %q", p.Title, p.Channel, p.Start))
		return
	}
	stop, err := parseXMLTVTime(p.Stop)
	if err != nil {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("programme %q on %s: bad stop time %q", p.Title, p.Channel, p.Stop))
		return
	}
	if !start.Before(stop) {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("programme %q on %s: start not before stop", p.Title, p.Channel))
		return
	}
	category := ""
	if len(p.Category) > 0 {
		category = p.Category[0]
	}
	r.Entries = append(r.Entries, content.EPGEntry{
		ChannelID: p.Channel,
		Title:     p.Title,
		Desc:      p.Desc,
		Category:  category,
		Start:     start,
		Stop:      stop,
	})
}

// parseXMLTVTime accepts the canonical zoned layout and the zone-less
// form some feeds emit (interpreted as UTC).
func parseXMLTVTime(s string) (time.Time, error) {
	if t, err := time.Parse(xmltvTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("20060102150405", s)
}

// FormatTime renders t in XMLTV wire format.
func FormatTime(t time.Time) string {
	return t.Format(xmltvTimeLayout)
}
