package main

import (
	"os"

	"github.com/cryptobuddy/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}