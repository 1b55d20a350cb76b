// doorlock-node runs a door lock user credential node.
//
// Usage:
//
//	doorlock-node serve --config doorlock.yaml
//	doorlock-node dump --config doorlock.yaml -o yaml
//	doorlock-node reset --config doorlock.yaml
//	doorlock-node discover
//	doorlock-node selftest
package main

import (
	"os"

	"github.com/backkem/doorlock/cmd/doorlock-node/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
