package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// OCR output for a ROOM product screenshot shows the likes count next to
// a heart glyph (often misread as 〇 or の) or with a 件 suffix, and the
// shop name on the line after the price marker 価.
var (
	likesGlyphRe = regexp.MustCompile(`[♡♥❤〇の]\s*(\d+)`)
	likesUnitRe  = regexp.MustCompile(`(\d+)\s*件`)
	shopRe       = regexp.MustCompile(`価\s*(.+)`)
)

// ExtractFields pulls the likes count and shop name out of OCR-extracted
// text. Matching is best-effort: a field with no match comes back nil and
// the caller is expected to let the user fill it in before commit.
func ExtractFields(rawText string) (likes *int64, shop *string) {
	if m := likesGlyphRe.FindStringSubmatch(rawText); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			likes = &n
		}
	}
	if likes == nil {
		if m := likesUnitRe.FindStringSubmatch(rawText); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				likes = &n
			}
		}
	}

	if m := shopRe.FindStringSubmatch(rawText); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			shop = &name
		}
	}
	return likes, shop
}
