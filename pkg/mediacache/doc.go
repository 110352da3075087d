// Package mediacache keeps a content-addressed local copy of media referenced
// by stored records.
//
// Files are keyed by a hash of the source URL rather than of the bytes, so a
// URL always maps to the same name within a partition and a lookup needs no
// network access once the file exists. A file deleted from disk is simply
// fetched again on the next Resolve.
package mediacache
