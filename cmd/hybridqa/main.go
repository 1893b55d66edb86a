package main

import (
	"os"

	"github.com/malbeclabs/hybridqa/internal/cli"
)

// Set by LDFLAGS
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version, cli.Commit, cli.Date = version, commit, date
	os.Exit(int(cli.Run()))
}
