package main

import (
	"os"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/cmd/diagnoser/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
