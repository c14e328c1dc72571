package main

import (
	"os"

	"github.com/trebuchet-org/treb-release/internal/cli"
	"github.com/trebuchet-org/treb-release/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	config.SetBuildFlags(version, commit, date)
	os.Exit(cli.Execute())
}
