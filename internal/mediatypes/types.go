package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents a still or animated image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video container file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio file. Audio never gets a preview.
	FileTypeAudio FileType = "audio"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".apng": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// AnimatedImageExtensions are image formats that may carry more than one frame.
// Whether a given file actually is animated is only known after decoding.
var AnimatedImageExtensions = map[string]bool{
	".gif":  true,
	".webp": true,
	".apng": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
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
	".3gp":  true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".aac":  true,
	".m4a":  true,
}

// EmbeddedMetadataExtensions are formats whose files can carry generation
// parameters inside the file itself (text chunks or EXIF comments).
var EmbeddedMetadataExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Ext returns the lowercase extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if AudioExtensions[ext] {
		return FileTypeAudio
	}
	return FileTypeOther
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// RequiresTranscode reports whether previews for ext have to be derived
// (video frames or a re-encoded animation) rather than read from the file.
func RequiresTranscode(ext string) bool {
	return VideoExtensions[ext] || AnimatedImageExtensions[ext]
}

// HasEmbeddedMetadata reports whether ext can carry embedded generation metadata.
func HasEmbeddedMetadata(ext string) bool {
	return EmbeddedMetadataExtensions[ext]
}
