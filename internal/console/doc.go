// Package console serves the page cache administration console. It is only
// mounted in the development environment and offers a self-test that
// requests the console test page three times, a full cache clear, and the
// test page itself, which caches its own output.
package console
