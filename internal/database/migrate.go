package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Migration is a versioned pair of embedded SQL scripts.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// Script names are 000001_snake_name.up.sql with a matching .down.sql.
var migrationFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

var embedded = sync.OnceValues(func() ([]Migration, error) {
	return loadMigrations(migrationFS, "migrations")
})

// Migrations returns the embedded migrations ordered by version. A malformed
// or unpaired script is an error rather than a silent skip.
func Migrations() ([]Migration, error) {
	return embedded()
}

// MigrationByVersion returns the embedded migration with the given version.
func MigrationByVersion(version int) (*Migration, error) {
	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil, fmt.Errorf("migration version %d not found", version)
	}
	found := all[i]
	return &found, nil
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("migration %s: name must look like 000001_name.up.sql", entry.Name())
		}
		version, _ := strconv.Atoi(match[1])
		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		} else if m.Name != match[2] {
			return nil, fmt.Errorf("migration %06d is named both %s and %s", version, m.Name, match[2])
		}
		script := strings.TrimSpace(string(body))
		if match[3] == "up" {
			m.UpScript = script
		} else {
			m.DownScript = script
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpScript == "" || m.DownScript == "" {
			return nil, fmt.Errorf("migration %s needs both an up and a down script", m.String())
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}
