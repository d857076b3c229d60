package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/chrissnell/lantern/internal/storage/sqlite"
	"github.com/chrissnell/lantern/pkg/config"
	"github.com/chrissnell/lantern/pkg/migrate"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

func main() {
	var (
		dbDriver       = flag.String("driver", "sqlite", "Database driver (sqlite, postgres)")
		dbDSN          = flag.String("dsn", "", "Database connection string")
		schema         = flag.String("schema", "readings", "Embedded schema to migrate: readings, config")
		migrationDir   = flag.String("dir", "", "Migration directory (overrides -schema)")
		migrationTable = flag.String("table", "", "Migration table name (default depends on schema)")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	driverName, dialect := "sqlite", migrate.SQLite
	switch *dbDriver {
	case "sqlite":
	case "postgres":
		driverName, dialect = "pgx", migrate.Postgres
	default:
		log.Fatalf("Unsupported driver: %s", *dbDriver)
	}

	provider, err := migrationProvider(*schema, *migrationDir, *migrationTable, dialect)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Open database connection
	db, err := sql.Open(driverName, *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, provider, nil)

	// Execute command
	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		target, convErr := strconv.Atoi(*targetVersion)
		if convErr != nil {
			log.Fatalf("Invalid target version: %v", convErr)
		}
		if *command == "down" {
			err = migrator.MigrateDown(target)
		} else {
			err = migrator.MigrateTo(target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

// migrationProvider picks the embedded migrations of a schema, or a directory on disk
func migrationProvider(schema, dir, table string, dialect migrate.Dialect) (migrate.MigrationProvider, error) {
	if dir != "" {
		return migrate.NewFSProvider(os.DirFS(dir), ".", table, dialect), nil
	}
	if dialect != migrate.SQLite {
		return nil, fmt.Errorf("embedded schemas are SQLite only; use -dir for %s", dialect)
	}
	switch schema {
	case "readings":
		if table != "" {
			return nil, fmt.Errorf("-table cannot be combined with an embedded schema")
		}
		return sqlite.Migrations(), nil
	case "config":
		if table != "" {
			return nil, fmt.Errorf("-table cannot be combined with an embedded schema")
		}
		return config.Migrations(), nil
	default:
		return nil, fmt.Errorf("unknown schema %q: use readings or config", schema)
	}
}

func showStatus(migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Database driver: sqlite, postgres (default: sqlite)")
	fmt.Println("  -dsn string        Database connection string (required)")
	fmt.Println("  -schema string     Embedded schema: readings, config (default: readings)")
	fmt.Println("  -dir string        Migration directory, overrides -schema")
	fmt.Println("  -table string      Migration table name for -dir (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn readings.db -command up")
	fmt.Println("  migrate -dsn config.db -schema config -command status")
	fmt.Println("  migrate -dsn config.db -schema config -command down -target 1")
	fmt.Println("  migrate -driver postgres -dsn postgres://lantern@localhost/lantern -dir ./sql")
}
