package main

import (
	"os"

	"github.com/wowl-learning/wowl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
