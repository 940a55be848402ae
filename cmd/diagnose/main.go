// Command diagnose prints every component score of a user's recommendations,
// either computed locally from the configured catalog and cache or fetched from
// a running server. It never computes or stores embeddings.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
