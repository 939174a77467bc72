package main

import (
	"os"

	"github.com/Open330/open-agent-contribution-sub003/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
