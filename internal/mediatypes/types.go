package mediatypes

import (
	"path/filepath"
	"strings"

	"media-optimizer/internal/formats"
)

// ImageExtensions maps file extensions to whether they are supported
// image sources.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported
// video sources.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// MimeTypes maps source file extensions to MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// KindFor returns the media kind of a source file based on its
// extension. The second return value is false for unsupported files.
func KindFor(path string) (formats.Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ImageExtensions[ext] {
		return formats.KindImage, true
	}
	if VideoExtensions[ext] {
		return formats.KindVideo, true
	}
	return "", false
}

// MimeFor returns the MIME type to advertise for a source file.
// Unrecognized extensions fall back to application/octet-stream.
func MimeFor(path string) string {
	if mime, ok := MimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile reports whether the file is a supported conversion source.
func IsMediaFile(path string) bool {
	_, ok := KindFor(path)
	return ok
}
