package main

import (
	"os"

	"github.com/pthm/bindery/cmd/bindery/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
