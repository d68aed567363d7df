package main

import (
	"os"

	"github.com/danmuck/collectdwire/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Error().Err(err).Msg("collectdump failed")
		os.Exit(1)
	}
}
