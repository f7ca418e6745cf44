// Package mediatypes provides shared type definitions and extension rules for
// the media files the tracker caches metadata and previews for.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles.
//
// # File Types
//
//	mediatypes.FileTypeImage // Still and animated images (png, jpg, gif, webp, ...)
//	mediatypes.FileTypeVideo // Video containers (mp4, webm, mov, ...)
//	mediatypes.FileTypeAudio // Audio files, excluded from previews
//	mediatypes.FileTypeOther // Unrecognized files
//
// # Preview Rules
//
// RequiresTranscode reports formats whose previews must be generated
// (video frames or a bounded re-encoded animation). HasEmbeddedMetadata
// reports formats that may carry generation parameters inside the file.
//
//	ext := mediatypes.Ext(path)
//	if mediatypes.GetFileType(ext) == mediatypes.FileTypeAudio {
//	    // no preview
//	}
package mediatypes
