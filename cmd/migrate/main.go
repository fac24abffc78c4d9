package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/config"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/migration"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Catalog schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  steps <n>             Move n versions (negative rolls back)
  version               Print the applied version
  force <version>       Mark a version applied after a manual repair
  create <name> [desc]  Write a new empty migration pair

Flags:
  -path string          Migrations directory or source URL
  -log-level string     debug, info, warn or error (default info)

Connection settings come from CATALOG_DATABASE_* variables or config.toml.
`

func main() {
	path := flag.String("path", "", "Migrations directory or source URL (default: database.migrations_path)")
	level := flag.String("log-level", "info", "Log level")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	source := *path
	if source == "" {
		source = cfg.Database.MigrationsPath
	}

	if err := run(args, source, cfg, log); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Fatal("Migration failed", zap.String("command", args[0]), zap.Error(err))
	}
}

var errUsage = errors.New("usage")

func run(args []string, source string, cfg *config.Config, log *zap.Logger) error {
	cmd := args[0]
	if cmd == "create" {
		if len(args) < 2 {
			return fmt.Errorf("%w: create needs a name", errUsage)
		}
		desc := ""
		if len(args) > 2 {
			desc = strings.Join(args[2:], " ")
		}
		mf, err := migration.CreateMigration(strings.TrimPrefix(source, "file://"), args[1], desc)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, source, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch cmd {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s needs a number", errUsage, args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", errUsage, args[0], args[1])
	}
	return n, nil
}
