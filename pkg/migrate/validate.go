package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

const (
	annotationUp        = "-- +goose Up"
	annotationDown      = "-- +goose Down"
	annotationStmtBegin = "-- +goose StatementBegin"
	annotationStmtEnd   = "-- +goose StatementEnd"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks the migrations under dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(embedded, embeddedRoot)
}

// ValidateFS checks every .sql file under root in fsys: the
// YYYYMMDDHHMMSS_name.sql naming, unique versions, an Up section followed by
// a Down section, and balanced statement blocks. All problems are reported
// together.
func ValidateFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", root, err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		m := migrationName.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: name must be YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := checkAnnotations(string(body)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(versions) == 0 && errs == nil {
		return fmt.Errorf("no migrations found in %q", root)
	}
	return errs
}

func checkAnnotations(sql string) error {
	up := strings.Index(sql, annotationUp)
	down := strings.Index(sql, annotationDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", annotationUp)
	case down < 0:
		return fmt.Errorf("missing %q", annotationDown)
	case down < up:
		return fmt.Errorf("%q comes before %q", annotationDown, annotationUp)
	case strings.Count(sql, annotationStmtBegin) != strings.Count(sql, annotationStmtEnd):
		return errors.New("unbalanced StatementBegin/StatementEnd")
	}
	return nil
}
