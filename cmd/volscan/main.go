// Command volscan scans raw NTFS volumes into an in-memory index and
// answers substring/glob/regex queries over it, either one-shot from the
// command line or continuously over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
