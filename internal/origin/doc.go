// Package origin forwards cache misses to the origin renderer and stores the
// rendered HTML in the page cache so the next request for the same path is
// answered from disk. A cache write failure is logged and never changes the
// response sent to the client.
package origin
