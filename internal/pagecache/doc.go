// Package pagecache maps request URIs onto a static directory tree of fully
// rendered pages:
//
//	<CacheDir>/<segment-1>/<segment-2>/.../index.html
//
// A front-end web server serves those files directly and falls back to the
// application when a file is missing or empty. The package owns path
// derivation, directory materialization and the file lifecycle (write, read,
// delete, bulk cleanup) together with the optional creation-time status
// marker appended to each written page.
//
// Entries are created fresh per operation and carry no state beyond their
// resolved file path. There is no locking: writes replace the file by
// rename, so readers see either the previous or the new page.
package pagecache
