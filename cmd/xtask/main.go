// Package main is the stock xtask binary: every base command, nothing
// repository specific. Repositories that need their own commands build a
// binary of their own around pkg/xtask instead.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release process.
package main

import (
	"github.com/mmr-tortoise/xtask/pkg/commands"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	xtask.Version = version
	xtask.Commit = commit
	xtask.Date = date

	xtask.Run(xtask.Config{Commands: commands.Defaults()})
}
