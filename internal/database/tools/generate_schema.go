// Command generate_schema writes the SQLite schema produced by the embedded
// migrations to internal/database/schema.sql for review.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hrsync/internal/database"
	"hrsync/internal/database/migrations"
)

const schemaQuery = `
	SELECT sql || ';'
	FROM sqlite_master
	WHERE type IN ('table', 'index')
	  AND sql IS NOT NULL
	  AND name NOT LIKE 'sqlite_%'
	  AND tbl_name != 'schema_migrations'
	ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, tbl_name, name`

func main() {
	if err := run(filepath.Join("internal", "database", "schema.sql")); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db.DB, migrations.DialectSQLite); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	var statements []string
	if err := db.Select(&statements, schemaQuery); err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("-- Generated from internal/database/migrations/files/sqlite. Do not edit.\n")
	b.WriteString("-- Regenerate with: go generate ./internal/database\n\n")
	for _, s := range statements {
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("Generated %s (%d statements)\n", outPath, len(statements))
	return nil
}
