package constants

import "strings"

// AllowedImageExtensions holds the receipt image extensions accepted for scanning.
var AllowedImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// MaxImageMB caps the size of a receipt image accepted by the scan entry points.
const MaxImageMB = 15

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without the dot) is an accepted receipt image.
func IsImageExt(ext string) bool {
	_, ok := AllowedImageExtensions[NormalizeExt(ext)]
	return ok
}
