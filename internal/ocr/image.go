package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/joseph-ayodele/canteen-orders/constants"
)

// ValidateImage decodes the image header and returns its format ("png" or "jpeg").
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if len(data) > constants.MaxImageMB*1024*1024 {
		return "", fmt.Errorf("%w: image exceeds %d MB", ErrInvalidImage, constants.MaxImageMB)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if format != "png" && format != "jpeg" {
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidImage, format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}
	return format, nil
}
