package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Dialect selects the SQL used for the version table
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// files look like 001_create_detections.up.sql and 001_create_detections.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider reads migrations from a file system, usually an embed.FS
type FSProvider struct {
	fsys    fs.FS
	dir     string
	table   string
	dialect Dialect
}

// NewFSProvider returns a provider for the migrations in dir. table defaults to
// schema_migrations.
func NewFSProvider(fsys fs.FS, dir, table string, dialect Dialect) *FSProvider {
	if table == "" {
		table = "schema_migrations"
	}
	if dir == "" {
		dir = "."
	}
	if dialect == "" {
		dialect = SQLite
	}
	return &FSProvider{fsys: fsys, dir: dir, table: table, dialect: dialect}
}

// GetMigrations reads and pairs every up and down file in the directory
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", p.dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", e.Name(), err)
		}
		content, err := fs.ReadFile(p.fsys, p.path(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(m[2], "_", " ")}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (p *FSProvider) path(name string) string {
	if p.dir == "." {
		return name
	}
	return p.dir + "/" + name
}

// CreateMigrationTable creates the version table if needed
func (p *FSProvider) CreateMigrationTable(db DB) error {
	column := "DATETIME"
	if p.dialect == Postgres {
		column = "TIMESTAMP"
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version INTEGER PRIMARY KEY,
		applied_at %s DEFAULT CURRENT_TIMESTAMP
	)`, p.table, column)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest recorded version
func (p *FSProvider) GetCurrentVersion(db DB) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.table)
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one, dropping any higher versions
func (p *FSProvider) SetVersion(db DB, version int) error {
	del, ins := "DELETE FROM %s WHERE version > ?", "INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)"
	if p.dialect == Postgres {
		del = "DELETE FROM %s WHERE version > $1"
		ins = "INSERT INTO %s (version, applied_at) VALUES ($1, CURRENT_TIMESTAMP) ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP"
	}

	if _, err := db.Exec(fmt.Sprintf(del, p.table), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf(ins, p.table), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
