package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresScripts returns the embedded PostgreSQL migrations in lexical
// order. Each script is idempotent and may contain several statements.
func PostgresScripts() ([]string, error) {
	return readScripts(PostgresFS, "postgres")
}

func readScripts(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var scripts []string
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		scripts = append(scripts, string(data))
	}
	return scripts, nil
}
