package main

import (
	"os"

	"github.com/mgreiner/update-fstab-uuid/cmd/update-fstab-uuid/commands"
	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

func main() {
	// Human-readable stderr logging until the configuration is loaded
	log.Init(log.Config{Level: log.InfoLevel})

	if err := commands.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
