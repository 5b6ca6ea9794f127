package main

import (
	"fmt"
	"os"

	"bgzfiltra/cmd/bgzfiltra/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
