// Package mediatype determines the MIME type of an uploaded file.
//
// The file name extension is consulted first. Files with an unknown or
// missing extension fall back to content sniffing. A result of "" means the
// type could not be determined.
package mediatype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

var byExtension = map[string]string{
	// video
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".ts":   "video/mp2t",
	// audio
	".wav":  "audio/x-wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
	".aif":  "audio/x-aiff",
	".aiff": "audio/x-aiff",
	// common non-media uploads, reported so they are rejected as unsupported
	// rather than undetectable
	".txt":  "text/plain",
	".json": "application/json",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ByExtension returns the MIME type registered for name's extension, or "".
func ByExtension(name string) string {
	return byExtension[strings.ToLower(filepath.Ext(name))]
}

// Sniff inspects the file content. It returns "" when the content is not
// recognised.
func Sniff(path string) string {
	detected, err := mimetype.DetectFile(path)
	if err != nil || detected == nil {
		return ""
	}
	value := detected.String()
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	value = strings.TrimSpace(value)
	if value == octetStream {
		return ""
	}
	return value
}

// Detect returns the MIME type for the file at path. name is the original
// upload file name; when empty the base of path is used.
func Detect(path, name string) string {
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(path)
	}
	if mime := ByExtension(name); mime != "" {
		return mime
	}
	return Sniff(path)
}

// IsMedia reports whether mime names an audio or video type.
func IsMedia(mime string) bool {
	return strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/")
}
