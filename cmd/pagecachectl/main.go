// Command pagecachectl inspects and maintains a page cache directory offline,
// using the same configuration file as the pagecache server.
package main

import "os"

func main() {
	os.Exit(Run(os.Args[1:]))
}
