// Package server hosts the Fiber HTTP service in front of the page cache.
// NewApp wires request IDs, panic recovery and the cache lookup middleware
// that mirrors the front-end rewrite rules: a GET for /a/b is answered from
// <CacheDir>/a/b/index.html when that file is non-empty, otherwise the
// request falls through to the origin handler. The origin client and the
// hop-by-hop header filter used by the origin proxy also live here. Keep
// exports narrow and accept explicit dependencies.
package server
