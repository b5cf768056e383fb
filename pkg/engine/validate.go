package engine

import (
	"fmt"
	"net/http"

	"modex-hq/aegis/pkg/config"
)

// Accepted image media types. Format detection sniffs the payload's magic
// bytes; the client-supplied Content-Type header is never trusted.
var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ValidateUpload checks an uploaded image against the configured limits and
// returns its sniffed media type. A rejected upload never reaches a backend.
func ValidateUpload(data []byte, filename string, limits config.LimitsConfig) (string, error) {
	if len(data) == 0 {
		return "", &ValidationError{Field: filename, Reason: "empty file"}
	}
	if int64(len(data)) > limits.MaxImageBytes {
		return "", &ValidationError{
			Field:  filename,
			Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", limits.MaxImageBytes),
		}
	}

	contentType := http.DetectContentType(data)
	if !acceptedTypes[contentType] {
		return "", &ValidationError{
			Field:  filename,
			Reason: fmt.Sprintf("unsupported image type %q (expected JPEG or PNG)", contentType),
		}
	}

	return contentType, nil
}
