package main

import (
	"os"

	"github.com/tormodhaugland/intake/cmd/intake/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
