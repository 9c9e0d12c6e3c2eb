package capture

import (
	"bytes"
	"testing"
)

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		subtype string
		ok      bool
	}{
		{
			name:    "jpeg part",
			raw:     "--b\r\nContent-Disposition: form-data\r\nContent-Type: image/jpeg\r\n\r\nJPEGDATA\r\n--b--\r\n",
			want:    "JPEGDATA",
			subtype: "jpeg",
			ok:      true,
		},
		{
			name:    "png part",
			raw:     "Content-Type: image/png\r\n\r\n\x89PNG\r\n\x1a\n\x00\r\n--boundary",
			want:    "\x89PNG\r\n\x1a\n\x00",
			subtype: "png",
			ok:      true,
		},
		{
			name:    "jpg part",
			raw:     "Content-Type: image/jpg\r\n\r\nabc\r\n--x",
			want:    "abc",
			subtype: "jpg",
			ok:      true,
		},
		{
			name:    "empty payload",
			raw:     "Content-Type: image/png\r\n\r\n\r\n--x",
			want:    "",
			subtype: "png",
			ok:      true,
		},
		{
			name:    "embedded blank lines stay in payload",
			raw:     "Content-Type: image/jpeg\r\n\r\na\r\n\r\nb\r\n-c\r\n--end",
			want:    "a\r\n\r\nb\r\n-c",
			subtype: "jpeg",
			ok:      true,
		},
		{
			name:    "first of two parts",
			raw:     "Content-Type: image/png\r\n\r\nONE\r\n--b\r\nContent-Type: image/jpeg\r\n\r\nTWO\r\n--b--",
			want:    "ONE",
			subtype: "png",
			ok:      true,
		},
		{
			name:    "unsupported subtype skipped",
			raw:     "Content-Type: image/gif\r\n\r\nGIF\r\n--b\r\nContent-Type: image/jpeg\r\n\r\nJPG\r\n--b--",
			want:    "JPG",
			subtype: "jpeg",
			ok:      true,
		},
		{name: "no boundary", raw: "Content-Type: image/jpeg\r\n\r\nJPEGDATA", ok: false},
		{name: "no blank line", raw: "Content-Type: image/jpeg\r\nX: y\r\n\r\nJPEG\r\n--b", ok: false},
		{name: "text part", raw: "Content-Type: text/plain\r\n\r\nhi\r\n--b", ok: false},
		{name: "lowercase header", raw: "content-type: image/jpeg\r\n\r\nhi\r\n--b", ok: false},
		{name: "empty", raw: "", ok: false},
		{name: "plain GET", raw: "GET / HTTP/1.1\r\n\r\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, ok := ExtractImage([]byte(tt.raw))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				if img != nil {
					t.Errorf("expected nil image on no match")
				}
				return
			}
			if !bytes.Equal(img.Data, []byte(tt.want)) {
				t.Errorf("Data = %q, want %q", img.Data, tt.want)
			}
			if img.Subtype != tt.subtype {
				t.Errorf("Subtype = %q, want %q", img.Subtype, tt.subtype)
			}
		})
	}
}

func TestExtractImage_DoesNotAlias(t *testing.T) {
	raw := []byte("Content-Type: image/png\r\n\r\nPIX\r\n--b")
	img, ok := ExtractImage(raw)
	if !ok {
		t.Fatal("expected match")
	}
	img.Data[0] = 'X'
	if !bytes.Contains(raw, []byte("PIX")) {
		t.Error("extracted payload shares memory with the request")
	}
}
