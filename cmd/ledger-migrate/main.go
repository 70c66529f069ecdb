// Command ledger-migrate applies the ledger schema migrations.
//
//	ledger-migrate [--dsn URL] [--dir DIR] up|down|version|to N
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"ms-ledger/internal/config"
	"ms-ledger/internal/database/migrations"
	"ms-ledger/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dsn := pflag.String("dsn", cfg.Database.DSN, "Postgres connection string")
	dir := pflag.String("dir", cfg.Ledger.MigrationsDir, "directory holding the migration files")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ledger-migrate [flags] up|down|version|to N\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	log := logger.NewWithWriter(os.Stderr)

	sqldb, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	runner := migrations.NewRunner(bun.NewDB(sqldb, pgdialect.New()), migrations.Options{Dir: *dir}, log)
	defer runner.Close()

	if err := run(runner, pflag.Args()); err != nil {
		log.Error("MIGRATION", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "to":
		if len(args) != 2 {
			return fmt.Errorf("to needs a version")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad version %q: %w", args[1], err)
		}
		return runner.To(uint(v))
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
