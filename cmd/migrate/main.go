package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

const usage = `usage: migrate [-steps N] <up|down|version>

  up        apply all pending migrations
  down      roll back -steps migrations (default 1)
  version   print the current schema version
`

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(&logger.Config{Level: cfg.Log.Level, Format: "console"})

	migrator, err := postgres.NewMigrator(cfg.Database.URL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open migrator")
	}
	defer migrator.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down(*steps)
	case "version":
		var (
			version uint
			dirty   bool
		)
		if version, dirty, err = migrator.Version(); err == nil {
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		}
	default:
		flag.Usage()
		migrator.Close()
		os.Exit(2)
	}
	if err != nil {
		migrator.Close()
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migration failed")
	}
	log.Info().Str("command", flag.Arg(0)).Msg("migration finished")
}
