// Package mimeutil detects MIME types from file extensions. Detection is
// deliberately extension-based, not magic-byte based, so results are
// predictable across platforms.
package mimeutil

import (
	"mime"
	"path/filepath"
	"strings"
)

var byExtension = map[string]string{
	// Documents
	".pdf":      "application/pdf",
	".json":     "application/json",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xml":      "application/xml",
	".csv":      "text/csv",
	".yaml":     "application/x-yaml",
	".yml":      "application/x-yaml",
	".toml":     "application/toml",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",

	// Video
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",

	// Archives
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".gzip": "application/gzip",
	".bz2":  "application/x-bzip2",
	".xz":   "application/x-xz",
	".7z":   "application/x-7z-compressed",
	".rar":  "application/vnd.rar",

	// Code
	".js":   "application/javascript",
	".ts":   "application/typescript",
	".py":   "text/x-python",
	".rs":   "text/x-rust",
	".go":   "text/x-go",
	".java": "text/x-java",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".cpp":  "text/x-c++",
	".hpp":  "text/x-c++",
	".cc":   "text/x-c++",
	".css":  "text/css",
	".sh":   "application/x-sh",
}

// FromExtension returns the MIME type for a path based on its extension,
// falling back to the platform mime registry and finally to
// application/octet-stream.
func FromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := byExtension[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		// Strip any charset parameter; JACS records bare types.
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		return mt
	}
	return "application/octet-stream"
}
