// Command ghatsafe-train fits vocabularies, scaler and forest on a historical
// accident table and writes the artifact bundle the server loads.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
	"github.com/ghatsafe/ghatsafe/internal/training"
)

type options struct {
	dataset      string
	out          string
	schema       string
	runID        string
	seed         uint64
	trees        int
	maxDepth     int
	testFraction float64
	defaultHour  int
	maxVehicles  int
	balanced     bool
	jsonReport   bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("ghatsafe-train", flag.ContinueOnError)
	fs.StringVar(&o.dataset, "dataset", "", "Accident dataset (.csv or .xlsx)")
	fs.StringVar(&o.out, "out", "artifacts", "Directory to write artifacts to")
	fs.StringVar(&o.schema, "schema", features.Base.Name, "Feature schema: base or geometry")
	fs.StringVar(&o.runID, "run-id", "", "Run id stamped on every artifact (random if empty)")
	fs.Uint64Var(&o.seed, "seed", 42, "Random seed for the holdout split and forest")
	fs.IntVar(&o.trees, "trees", 100, "Number of trees")
	fs.IntVar(&o.maxDepth, "max-depth", 12, "Maximum tree depth")
	fs.Float64Var(&o.testFraction, "test-fraction", 0.2, "Fraction of rows held out for accuracy")
	fs.IntVar(&o.defaultHour, "default-hour", timeutil.DefaultHour, "Hour used for unparseable times")
	fs.IntVar(&o.maxVehicles, "max-vehicles", features.DefaultMaxVehicles, "Largest accepted vehicle count")
	fs.BoolVar(&o.balanced, "balanced", true, "Weight classes inversely to their frequency")
	fs.BoolVar(&o.jsonReport, "json", false, "Print the training report as JSON")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.dataset == "" {
		return o, fmt.Errorf("-dataset is required")
	}
	if o.defaultHour < 0 || o.defaultHour > 23 {
		return o, fmt.Errorf("-default-hour must be between 0 and 23")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatal(err)
	}
	if err := run(o, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(o options, out io.Writer) error {
	schema, err := features.SchemaByName(o.schema)
	if err != nil {
		return err
	}
	table, err := dataset.Load(o.dataset)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d records from %s (%d skipped)", len(table.Records), o.dataset, table.Skipped)

	bundle, rep, err := training.Fit(table.Records, training.Options{
		RunID:        o.runID,
		Schema:       schema,
		Hours:        timeutil.HourNormalizer{Default: o.defaultHour},
		MaxVehicles:  o.maxVehicles,
		Geometry:     dataset.NewGeometryTable(table.Records),
		TestFraction: o.testFraction,
		Seed:         o.seed,
		Forest: classifier.TrainOptions{
			Trees:    o.trees,
			MaxDepth: o.maxDepth,
			Balanced: o.balanced,
		},
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", o.out, err)
	}
	if err := artifact.SaveBundle(artifact.NewDirStore(o.out), bundle); err != nil {
		return err
	}
	log.Printf("✓ Wrote %d artifacts to %s", len(artifact.Names()), o.out)
	return printReport(out, rep, o.jsonReport)
}

func printReport(w io.Writer, rep training.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "run_id:    %s\n", rep.RunID)
	fmt.Fprintf(w, "schema:    %s\n", rep.Schema)
	fmt.Fprintf(w, "rows:      %d (%d skipped)\n", rep.Rows, rep.Skipped)
	fmt.Fprintf(w, "split:     %d train / %d test\n", rep.TrainRows, rep.TestRows)
	for i, tier := range severity.Tiers() {
		fmt.Fprintf(w, "%-10s %d\n", tier.String()+":", rep.ClassCounts[i])
	}
	fmt.Fprintf(w, "accuracy:  %.3f\n", rep.Accuracy)
	return nil
}
