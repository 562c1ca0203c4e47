package main

import (
	"os"

	"github.com/localhands/matchd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
