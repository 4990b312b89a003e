package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- {{.Name}}
-- Guard counters with CHECK constraints and keep index names unique.

-- +goose Down
-- rollback {{.Name}}
`))

// migrationSlug lowercases name and collapses everything outside [a-z0-9]
// into single underscores.
func migrationSlug(name string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<slug>.sql with empty Up
// and Down sections. A slug already used by another migration in dir is
// rejected.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %q: %w", dir, err)
	}
	if taken, _ := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql")); len(taken) > 0 {
		return "", fmt.Errorf("migration %q already exists as %s", slug, filepath.Base(taken[0]))
	}

	target := filepath.Join(dir, time.Now().UTC().Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if err := migrationTemplate.Execute(f, struct{ Name string }{slug}); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write migration: %w", err)
	}
	return target, nil
}
