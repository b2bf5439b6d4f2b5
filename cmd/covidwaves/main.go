package main

import (
	"os"

	"covid-waves/cmd/covidwaves/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
