package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
)

// ErrUsage is returned when the migrate subcommand is invoked incorrectly.
var ErrUsage = errors.New("invalid migrate usage")

// RunMigrateCommand dispatches 'ghatsafe migrate <action>' against the
// database at dbPath. Help text and status are written to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return ErrUsage
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	numArg := func() (int, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("%w: ghatsafe migrate %s <version_number>", ErrUsage, action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: invalid version number %q", ErrUsage, args[1])
		}
		return v, nil
	}

	switch action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		log.Println("✓ All migrations applied successfully")
	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		log.Println("✓ Rolled back one migration")
	case "status":
		return printStatus(database, migrations, out)
	case "version":
		v, err := numArg()
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
		log.Printf("✓ Migrated to version %d", v)
	case "force":
		v, err := numArg()
		if err != nil {
			return err
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		log.Printf("✓ Forced version to %d", v)
	case "baseline":
		v, err := numArg()
		if err != nil {
			return err
		}
		return database.BaselineAtVersion(uint(v))
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return ErrUsage
	}
	return nil
}

func printStatus(database *DB, migrations fs.FS, out io.Writer) error {
	st, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d\n", st.CurrentVersion)
	fmt.Fprintf(out, "Latest version:  %d\n", st.LatestVersion)
	fmt.Fprintf(out, "Dirty:           %t\n", st.Dirty)
	switch {
	case st.Dirty:
		fmt.Fprintln(out, "⚠️  Database is dirty. Fix the failed migration, then run 'ghatsafe migrate force <version>'.")
	case st.Pending():
		fmt.Fprintf(out, "%d migration(s) pending. Run 'ghatsafe migrate up'.\n", st.LatestVersion-st.CurrentVersion)
	default:
		fmt.Fprintln(out, "✓ Database is up to date")
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: ghatsafe migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current and latest schema versions
  version <n>        Migrate up or down to version n
  force <n>          Record version n without running it (recovery only)
  baseline <n>       Mark an existing schema as version n
  help               Show this help
`)
}
