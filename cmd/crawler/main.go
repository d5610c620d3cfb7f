// Package main is the wiki-weaver command: it crawls the encyclopedia link
// graph from seed topics and appends the discovered edges to CSV/JSON files,
// keeping a per-seed frontier so interrupted crawls resume where they stopped.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
