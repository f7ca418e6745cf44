/*
Package store persists cached metadata and preview records in embedded
databases, one per folder or one pooled store for everything.

Two backends are available: SQLite (mattn/go-sqlite3, schema managed with
golang-migrate) and bbolt with CBOR-encoded values. Both hold two
collections keyed by file name (or full path in pooled mode).

The Registry hands out one FolderStore per folder and keeps it healthy:

  - A store file that cannot be opened as a valid database is deleted and
    created again.
  - Every backend error is counted. When a store reaches the error
    threshold it is closed, its files are deleted and the next lookup
    starts from an empty store.
  - A folder rebuilt more than MaxRebuilds times within RebuildWindow gets
    ErrStoreDisabled from then on; callers compute results without
    persisting them.

Shutdown and CloseAndDeleteAll swap out the whole registry map first, so no
new lookups land on a store that is being closed.
*/
package store
