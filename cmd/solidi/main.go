package main

import (
	"os"

	"github.com/solidifx/solidi-go/cmd/solidi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
