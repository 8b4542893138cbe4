package main

import (
	"os"

	_ "time/tzdata"

	"reward-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
