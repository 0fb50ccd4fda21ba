// Package dataurl encodes and decodes base64 "data:" URLs used to carry
// product images inline.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	scheme       = "data:"
	base64Marker = ";base64,"
)

var (
	ErrMalformed = errors.New("malformed data url")
	ErrNotImage  = errors.New("data is not an image")
)

// EncodeImage detects the MIME type of data and returns it as a base64 data URL.
// It fails with ErrNotImage when the content is not an image.
func EncodeImage(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !isImage(mime.String()) {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime.String())
	}

	return scheme + mime.String() + base64Marker + base64.StdEncoding.EncodeToString(data), nil
}

// Decode splits a base64 data URL into its declared MIME type and payload.
func Decode(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, scheme) {
		return "", nil, ErrMalformed
	}

	mimeType, payload, ok := strings.Cut(s[len(scheme):], base64Marker)
	if !ok || mimeType == "" {
		return "", nil, ErrMalformed
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return mimeType, data, nil
}

// ValidateImage checks that s is a base64 data URL whose declared and
// detected MIME types are both images.
func ValidateImage(s string) error {
	mimeType, data, err := Decode(s)
	if err != nil {
		return err
	}

	if !isImage(mimeType) {
		return fmt.Errorf("%w: declared %s", ErrNotImage, mimeType)
	}

	if detected := mimetype.Detect(data); !isImage(detected.String()) {
		return fmt.Errorf("%w: detected %s", ErrNotImage, detected.String())
	}

	return nil
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
