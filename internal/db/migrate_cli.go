package db

import (
	"fmt"
	"io"
)

// MigrateActions lists the actions RunMigrateCommand accepts.
var MigrateActions = []string{"up", "down", "status"}

// RunMigrateCommand applies one migrate action to the database and reports
// the resulting schema version on w.
func RunMigrateCommand(database *DB, action string, w io.Writer) error {
	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want one of %v)", action, MigrateActions)
	}

	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(w, "%s: schema version %d", database.Path(), version)
	if dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)
	return nil
}
