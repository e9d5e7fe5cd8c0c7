// Package migrations applies the embedded schema files for both databases.
package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
