package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// codeDuplicateObject is SQLSTATE duplicate_object.
const codeDuplicateObject = "42710"

// ApplyDDL executes ddl statements in key order. Statements are expected to
// be idempotent; duplicate-object failures are logged and skipped.
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, log zerolog.Logger) error {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		stmt := strings.TrimSpace(ddl[k])
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateObject {
				log.Info().Str("step", k).Str("reason", strings.TrimSpace(pgErr.Message)).Msg("ddl skipped: already exists")
				continue
			}
			return fmt.Errorf("apply ddl %s: %w", k, err)
		}
		log.Debug().Str("step", k).Msg("ddl applied")
	}
	return nil
}
