package database

// schema.sql is a reviewable dump of the SQLite schema built by the
// migrations. Regenerate it after adding a migration:
//
//	go generate ./internal/database

//go:generate sh -c "cd ../.. && go run ./internal/database/tools/generate_schema.go"
