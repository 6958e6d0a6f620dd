package migrations

import (
	"fmt"
	"net/url"
	"strings"
)

// ClickhouseStatements returns the embedded ClickHouse migrations split into
// single statements, since the driver does not run multi-statement Exec.
func ClickhouseStatements() ([]string, error) {
	scripts, err := readScripts(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	var stmts []string
	for i, script := range scripts {
		if err := validateNoSemicolonInStrings(script); err != nil {
			return nil, fmt.Errorf("validate clickhouse migration %d: %w", i+1, err)
		}
		stmts = append(stmts, splitStatements(script)...)
	}
	return stmts, nil
}

// splitStatements splits SQL content into individual statements by semicolon.
// Lines starting with -- are dropped first. Semicolons inside string
// literals are rejected by validateNoSemicolonInStrings.
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
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

// DatabaseFromDSN extracts the database name from a clickhouse:// DSN.
func DatabaseFromDSN(dsn string) (string, error) {
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
