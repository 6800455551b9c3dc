// Package main provides the entry point for the snipsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/snipsearch/cmd/snipsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
