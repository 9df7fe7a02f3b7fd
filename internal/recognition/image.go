package recognition

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Image is a photo given either as bytes or as a file path.
type Image struct {
	Path string
	Data []byte
}

// Bytes returns Data, reading Path when Data is empty.
func (img Image) Bytes() ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.Path == "" {
		return nil, fmt.Errorf("image has neither data nor path")
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", img.Path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", img.Path)
	}
	return data, nil
}

// MIMEType sniffs the image format, defaulting to JPEG which Telegram uses for photos.
func MIMEType(data []byte) string {
	ct := http.DetectContentType(data)
	switch ct {
	case "image/png", "image/gif", "image/webp", "image/jpeg":
		return ct
	}
	return "image/jpeg"
}

// Submission is everything one analysis request carries. It lives for a
// single call to Process and is never shared between users.
type Submission struct {
	UserID     int64
	Image      Image
	ReceivedAt time.Time
}
