/*
Package tracker caches generation metadata and previews for files under the
output directory.

A Tracker sits on a store.Registry and a codec.Codec. Lookups go to the
folder store first; a miss, or a record found stale, is computed from the
file and written back.

# Metadata

GetMetadataFor reads embedded parameters from PNG, JPEG and WebP files and
falls back to a "<name>.swarm.json" sidecar. Files under "Starred/" or with a
mirror copy there get "is_starred": true merged into their metadata.

# Previews

GetOrCreatePreviewFor prefers existing "<name>.swarmpreview.webp" and
"<name>.swarmpreview.jpg" siblings. Animations get both siblings generated:
an animated WebP limited to 256px, frames of at least 100ms and five seconds
of playback, plus a still JPEG. Videos get the same pair from ffmpeg. Plain
images get a JPEG thumbnail kept only in the store. Audio has no preview.

# Revalidation

A record older than RevalidateAfter is checked against the file's
modification time with probability ValidationChance. ForceRevalidate checks
on every hit.

# Maintenance

Warm fills both caches for a directory tree with a worker pool. Watcher drops
records for files that change while the server runs. MassRemoveMetadata
deletes every store under the output and data directories.
*/
package tracker
