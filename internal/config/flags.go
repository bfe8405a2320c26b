package config

import (
	"flag"
	"os"

	"github.com/couplesdiary/cryptocore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database DSN (default from Config)
//	-p          use postgres instead of sqlite
//	-o string   export output directory
//	-r int      recovery period in days
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-p", "-o", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.BoolVar(&cfg.UsePostgres, "p", cfg.UsePostgres, "use postgres instead of sqlite")
	fs.StringVar(&cfg.ExportDir, "o", cfg.ExportDir, "export output directory")
	fs.IntVar(&cfg.RecoveryPeriodDays, "r", cfg.RecoveryPeriodDays, "recovery period (in days)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
