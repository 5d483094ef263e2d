// Package main is the entry point for the apismoke application.
package main

import (
	"os"

	"github.com/jmylchreest/apismoke/cmd/apismoke/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
