// Package main provides catalogctl, the operator CLI for the catalog mirror.
package main

import (
	"os"

	"catalog-mirror/cmd/catalogctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
