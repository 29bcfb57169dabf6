package main

import (
	"os"

	"github.com/respogen/respogen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
