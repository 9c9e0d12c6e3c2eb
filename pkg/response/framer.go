package response

import (
	"bytes"
	"strconv"
)

var (
	lengthToken   = []byte("Content-Length")
	blankLine     = []byte("\r\n\r\n")
	canonicalHead = []byte("HTTP/1.1 200 OK\r\nServer: socket server v0.1\r\nContent-Type: text/html\r\n")
)

// Frame returns the bytes to send for template. A template that already
// carries a Content-Length token is returned as is. Otherwise the headers are
// replaced by the canonical block with the body's real length. A template
// without a blank line is treated as all body.
//
// The template is never modified.
func Frame(template []byte) []byte {
	if bytes.Contains(template, lengthToken) {
		return template
	}

	body := template
	if i := bytes.Index(template, blankLine); i >= 0 {
		body = template[i+len(blankLine):]
	}

	header := []byte("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n")
	out := make([]byte, 0, len(canonicalHead)+len(header)+len(body))
	out = append(out, canonicalHead...)
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// DeclaredLength returns the value of the first Content-Length header in
// framed, or -1 when there is none or it does not parse.
func DeclaredLength(framed []byte) int {
	i := bytes.Index(framed, []byte("Content-Length:"))
	if i < 0 {
		return -1
	}
	rest := framed[i+len("Content-Length:"):]
	end := bytes.Index(rest, []byte("\r\n"))
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(rest[:end])))
	if err != nil {
		return -1
	}
	return n
}
