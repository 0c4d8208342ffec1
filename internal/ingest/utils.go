package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/canteen-orders/constants"
)

// AllowedExt checks if a file extension is a receipt image (jpg/jpeg/png).
func AllowedExt(ext string) bool {
	return constants.IsImageExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
