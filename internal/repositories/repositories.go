// package repositories provides sqlite persistence for slot selections and save history.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/tracksaver/internal/shared"
)

// affected returns [shared.ErrNotFound] wrapped with what when the statement touched no rows.
func affected(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, shared.ErrNotFound)
	}
	return nil
}
