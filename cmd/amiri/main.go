package main

import (
	_ "embed"
	"strings"

	"github.com/seuros/amiri/internal/cli"
	"github.com/seuros/amiri/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	return executeCLI(strings.TrimSpace(versionFile))
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("amiri execution failed", "error", err)
	}
}
