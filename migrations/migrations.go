// Package migrations embeds the SQL schema migrations.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Direction selects up or down migrations
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migration is one embedded SQL file
type Migration struct {
	Name string
	SQL  string
}

// List returns the migrations of a direction in the order they must run:
// ascending for up, descending for down
func List(direction Direction) ([]Migration, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	suffix := "." + string(direction) + ".sql"
	names, err := fs.Glob(files, "*"+suffix)
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{
			Name: strings.TrimSuffix(name, suffix),
			SQL:  string(content),
		})
	}
	return migrations, nil
}
