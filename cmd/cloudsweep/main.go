package main

import (
	"github.com/evo-uds/cloudsweep/cmd/cloudsweep/commands"
)

func main() {
	commands.Execute()
}
