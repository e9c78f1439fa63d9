package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema_mysql.sql
var mysqlSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// ApplySchema creates any missing tables for the connected dialect.  Every
// statement is CREATE ... IF NOT EXISTS so it is safe to run at each boot.
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	var schema string
	switch db.DriverName() {
	case DriverMySQL:
		schema = mysqlSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if db.DriverName() == DriverMySQL {
		return alignOrderCounter(ctx, db)
	}
	return nil
}

// alignOrderCounter moves the active_orders AUTO_INCREMENT past every id
// already archived in past_orders.  InnoDB before 8.0 recomputes the
// counter from the live table on restart, which would hand out ids of
// archived orders again once active_orders is empty.
func alignOrderCounter(ctx context.Context, db *sqlx.DB) error {
	var maxID int64
	err := db.GetContext(ctx, &maxID,
		`SELECT GREATEST(
			COALESCE((SELECT MAX(id) FROM past_orders), 0),
			COALESCE((SELECT MAX(id) FROM active_orders), 0))`)
	if err != nil {
		return fmt.Errorf("read order ids: %w", err)
	}
	if _, err := db.ExecContext(ctx, orderCounterStatement(maxID)); err != nil {
		return fmt.Errorf("align order counter: %w", err)
	}
	return nil
}

// orderCounterStatement sets the next active order id to maxID+1.  MySQL
// does not accept a placeholder here.
func orderCounterStatement(maxID int64) string {
	return fmt.Sprintf("ALTER TABLE active_orders AUTO_INCREMENT = %d", maxID+1)
}

func splitStatements(schema string) []string {
	var out []string
	for _, part := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
