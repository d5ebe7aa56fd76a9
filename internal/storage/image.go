package storage

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

// MaxPhotoBytes is the profile photo size limit.
const MaxPhotoBytes = 2 * 1024 * 1024

// ErrInvalidImage is returned when an upload fails content validation.
// The reason is intentionally generic: the upload came from an untrusted
// client and the distinction is not actionable for them.
var ErrInvalidImage = errors.New("invalid image file")

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// File signatures (magic numbers) per declared type.  The declared MIME
// header is attacker-controlled, so the bytes are what decide.
var fileSignatures = map[string][]byte{
	"image/jpeg": {0xFF, 0xD8, 0xFF},
	"image/png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"image/webp": {0x52, 0x49, 0x46, 0x46}, // RIFF; "WEBP" marker checked separately
}

// ValidateImage checks size, extension and content signature of an
// uploaded photo and returns the canonical content type for storage.
// Extension and magic number must agree: a PNG renamed to .jpg fails.
func ValidateImage(filename string, data []byte) (contentType string, err error) {
	if len(data) == 0 || len(data) > MaxPhotoBytes {
		return "", ErrInvalidImage
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", ErrInvalidImage
	}
	sig := fileSignatures[contentType]
	if len(data) < len(sig) || !bytes.Equal(data[:len(sig)], sig) {
		return "", ErrInvalidImage
	}
	// WEBP is a RIFF container: bytes 8-11 must spell "WEBP".
	if contentType == "image/webp" {
		if len(data) < 12 || string(data[8:12]) != "WEBP" {
			return "", ErrInvalidImage
		}
	}
	return contentType, nil
}
