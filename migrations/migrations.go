// Package migrations embeds the schema migrations for every supported driver.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// FS returns the migrations directory for the given database/sql driver name.
func FS(driver string) (fs.FS, error) {
	dir := "sqlite"
	if driver == "postgres" {
		dir = "postgres"
	}
	return fs.Sub(files, dir)
}
