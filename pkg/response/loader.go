// Package response loads the fixed reply template and frames it for sending.
package response

import (
	"os"
)

// Default is sent when no template file can be read. Its declared length is
// kept exactly as shipped, so the framer passes it through untouched.
var Default = []byte("HTTP/1.1 200 OK\r\n" +
	"Server: socket server v0.1\r\n" +
	"Content-Type: text/html\r\n" +
	"Content-Length: 96\r\n" +
	"\r\n" +
	"<html><head><title>socket server</title></head><body>I've got your message</body></html>")

// Load reads the template at path. Any read failure yields a copy of
// Default and usedDefault is true.
func Load(path string) (template []byte, usedDefault bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return append([]byte(nil), Default...), true
	}
	return data, false
}
