// Package main provides the entry point for the smartdoc CLI.
package main

import (
	"os"

	"github.com/smartdocfinder/smartdoc/cmd/smartdoc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
