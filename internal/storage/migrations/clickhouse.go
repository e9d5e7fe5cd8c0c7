package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	chstore "equity-backtest-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations ensures the target database exists and applies the
// embedded SQL files in lexical order. The returned connection is bound to
// the target database and ready for store construction.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}
	for _, file := range files {
		if err := applyFile(ctx, conn, file); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// ensureDatabase creates the database over a short-lived admin connection.
func ensureDatabase(ctx context.Context, dsn, dbName string) error {
	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer adminConn.Close()

	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// sqlFiles lists the .sql entries of an embedded directory in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, dir+"/"+entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// applyFile runs every statement of one migration file. The ClickHouse
// driver does not support multiquery Exec, so the file is split on
// semicolons; checkSplitterSafe rejects files the splitter cannot handle.
func applyFile(ctx context.Context, conn *chstore.Conn, file string) error {
	data, err := fs.ReadFile(ClickhouseFS, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if err := checkSplitterSafe(string(data)); err != nil {
		return fmt.Errorf("validate migration %s: %w", file, err)
	}
	for _, stmt := range splitStatements(string(data)) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// splitStatements splits SQL into statements on semicolons, after dropping
// blank lines and -- comments. Migration files must keep semicolons out of
// string literals and must not use /* */ comments containing semicolons;
// checkSplitterSafe enforces the first rule.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// checkSplitterSafe rejects SQL with a semicolon inside a single-quoted
// string, which the line-based splitter would cut in half.
func checkSplitterSafe(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			// '' escapes a quote inside a string
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal breaks the statement splitter")
			}
		}
	}
	return nil
}

// databaseFromDSN extracts the database name from a clickhouse:// DSN path.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
