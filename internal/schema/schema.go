// Package schema owns the Postgres DDL for every repository in this module.
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"voiceguard/pkg/utils"
)

//go:embed schema.sql
var ddl string

// Statements returns the DDL split into individual statements, comments removed.
func Statements() []string {
	var b strings.Builder
	for _, line := range strings.Split(ddl, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Apply creates any missing tables and indexes in one transaction.
func Apply(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range Statements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}
