package logger

import (
	"time"
)

// CaptureRecord describes one handled connection
type CaptureRecord struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id"`
	Timestamp    time.Time     `json:"timestamp"`
	RemoteAddr   string        `json:"remote_addr"`
	BytesRead    int           `json:"bytes_read"`
	EndReason    string        `json:"end_reason"`
	SnapshotPath string        `json:"snapshot_path"`
	ImagePath    string        `json:"image_path,omitempty"`
	ImageType    string        `json:"image_type,omitempty"`
	ImageSize    int           `json:"image_size,omitempty"`
	ResponseSize int           `json:"response_size"`
	Duration     time.Duration `json:"duration"`
}

// HasImage reports whether an image payload was extracted
func (r *CaptureRecord) HasImage() bool {
	return r.ImagePath != ""
}
