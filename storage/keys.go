package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AudioPrefix is where uploaded tracks live in the bucket.
const AudioPrefix = "tracks/"

// AudioKey returns the object key of a track upload.
func AudioKey(projectID, trackID, format string) string {
	return fmt.Sprintf("%s%s/%s.%s", AudioPrefix, projectID, trackID, format)
}

// AudioFormat returns the lower-case extension of filename without the dot.
func AudioFormat(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ContentType maps an audio format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "ogg":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// FormatSize renders size in human-readable units.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
