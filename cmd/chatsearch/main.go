// Package main provides the entry point for the chatsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/chatsearch/cmd/chatsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
