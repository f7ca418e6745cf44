package store

// Stamp is the staleness information shared by every record kind.
type Stamp struct {
	// FileTime is the source file's modification time (unix seconds) when
	// the record was computed.
	FileTime int64
	// LastVerified is when FileTime was last compared against the disk
	// (unix seconds).
	LastVerified int64
}

// MetadataRecord caches the generation metadata of one file.
//
// A nil *MetadataRecord means "no record". A record whose Metadata is nil
// means the file exists but carries no metadata.
type MetadataRecord struct {
	Key      string
	Metadata *string
	Stamp
}

// PreviewRecord caches the preview bytes of one file.
//
// Simplified is set only when Data holds an animated preview; it is the
// static variant of the same preview.
type PreviewRecord struct {
	Key        string
	Data       []byte
	Simplified []byte
	Stamp
}

// Animated reports whether the record carries an animated preview.
func (p *PreviewRecord) Animated() bool {
	return p != nil && p.Simplified != nil
}
