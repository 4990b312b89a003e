package migrate

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedRoot = "migrations"

// EmbeddedFiles lists the migrations compiled into the binary, oldest first.
func EmbeddedFiles() ([]string, error) {
	entries, err := fs.ReadDir(embedded, embeddedRoot)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
