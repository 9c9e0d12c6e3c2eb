package capture

import (
	"bytes"
)

var (
	contentTypeMarker = []byte("Content-Type: image/")
	blankLine         = []byte("\r\n\r\n")
	boundaryMarker    = []byte("\r\n--")
	// Order matters: jpeg is tried before jpg.
	imageSubtypes = [][]byte{[]byte("jpeg"), []byte("png"), []byte("jpg")}
)

// Image is a payload pulled out of a multipart-style body
type Image struct {
	Data    []byte
	Subtype string
}

// ExtractImage returns the first image part in raw. A part starts after a
// "Content-Type: image/{jpeg,png,jpg}" line and the blank line that follows
// it, and ends right before the next "\r\n--". Without a closing boundary
// there is no match.
func ExtractImage(raw []byte) (*Image, bool) {
	for off := 0; off < len(raw); {
		i := bytes.Index(raw[off:], contentTypeMarker)
		if i < 0 {
			return nil, false
		}
		markerAt := off + i

		if subtype, bodyStart, ok := matchSubtype(raw, markerAt+len(contentTypeMarker)); ok {
			end := bytes.Index(raw[bodyStart:], boundaryMarker)
			if end < 0 {
				// No later marker can have a boundary either.
				return nil, false
			}
			return &Image{
				Data:    bytes.Clone(raw[bodyStart : bodyStart+end]),
				Subtype: subtype,
			}, true
		}

		off = markerAt + 1
	}
	return nil, false
}

// matchSubtype checks for "<subtype>\r\n\r\n" at raw[at:] and returns where
// the payload begins.
func matchSubtype(raw []byte, at int) (string, int, bool) {
	rest := raw[at:]
	for _, sub := range imageSubtypes {
		if bytes.HasPrefix(rest, sub) && bytes.HasPrefix(rest[len(sub):], blankLine) {
			return string(sub), at + len(sub) + len(blankLine), true
		}
	}
	return "", 0, false
}
