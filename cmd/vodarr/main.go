// Package main is the entry point for the vodarr play server.
package main

import (
	"os"

	"github.com/vodarr/vodarr/cmd/vodarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
