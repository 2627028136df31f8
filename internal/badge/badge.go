// Package badge renders student ids as scannable QR codes.
package badge

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"hostelattendance/internal/apperr"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// PNG encodes badgeID as a QR code image. The payload is the bare id, which
// is what the scan endpoint expects back.
func PNG(badgeID string, size int) ([]byte, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" {
		return nil, apperr.Invalid("student id is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(badgeID, qrcode.Medium, size)
}
