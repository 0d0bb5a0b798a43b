package services

import (
	"path/filepath"
	"strings"
)

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer("..", "_", "/", "_", "\\", "_")
	return replacer.Replace(name)
}

// fileExtension returns the extension without the leading dot, lower-cased.
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func getMimeType(ext string) string {
	mimeTypes := map[string]string{
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"bmp":  "image/bmp",
		"webp": "image/webp",
		"pdf":  "application/pdf",
		"txt":  "text/plain",
		"mp4":  "video/mp4",
		"webm": "video/webm",
		"mp3":  "audio/mpeg",
		"zip":  "application/zip",
	}
	if mt, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return mt
	}
	return "application/octet-stream"
}
