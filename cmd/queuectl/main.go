// Command queuectl manages a durable queue of shell commands backed by
// SQLite: enqueue work, inspect it, and run the workers that execute it.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
