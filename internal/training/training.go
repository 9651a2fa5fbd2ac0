// Package training fits a complete artifact bundle from historical records.
// Rows are encoded with the same features.Vectorizer the server uses.
package training

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/scaler"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
)

// Options configures a training run.
type Options struct {
	// RunID tags every artifact. A random one is generated when empty.
	RunID       string
	Schema      features.Schema
	Hours       timeutil.HourNormalizer
	MaxVehicles int
	// Geometry is only consulted by schemas with slope and radius.
	Geometry features.GeometryLookup
	// TestFraction of rows is held out to report accuracy. Default 0.2.
	TestFraction float64
	Seed         uint64
	Forest       classifier.TrainOptions
}

// Report summarizes a training run.
type Report struct {
	RunID     string  `json:"run_id"`
	Schema    string  `json:"schema"`
	Rows      int     `json:"rows"`
	Skipped   int     `json:"skipped"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	Accuracy  float64 `json:"accuracy"`
	// ClassCounts is indexed by severity class.
	ClassCounts [3]int `json:"class_counts"`
}

// Fit fits vocabularies, scaler and forest on records and returns a bundle
// whose artifacts all share one run id.
func Fit(records []dataset.Record, opts Options) (*artifact.Bundle, Report, error) {
	if len(records) == 0 {
		return nil, Report{}, errors.New("training: no records")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if len(opts.Schema.Fields) == 0 {
		opts.Schema = features.Base
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.Forest.Seed == 0 {
		opts.Forest.Seed = opts.Seed
	}
	rep := Report{RunID: opts.RunID, Schema: opts.Schema.Name}

	set, err := vocab.FitSet(opts.RunID,
		dataset.LocationValues(records),
		dataset.WeatherValues(records),
		dataset.RoadValues(records),
	)
	if err != nil {
		return nil, rep, fmt.Errorf("training: %w", err)
	}

	vz := &features.Vectorizer{
		Schema:      opts.Schema,
		Vocab:       set,
		Geometry:    opts.Geometry,
		Hours:       opts.Hours,
		MaxVehicles: opts.MaxVehicles,
	}
	var X [][]float64
	var y []int
	for i, r := range records {
		vec, _, err := vz.Vector(r.Input())
		var ve *features.ValidationError
		if errors.As(err, &ve) {
			monitoring.Logf("training: skipping record %d: %v", i, ve)
			rep.Skipped++
			continue
		}
		if err != nil {
			return nil, rep, err
		}
		class := severity.Bucketize(r.Casualties).Tier.Class()
		X = append(X, vec)
		y = append(y, class)
		rep.ClassCounts[class]++
	}
	rep.Rows = len(X)
	if rep.Rows == 0 {
		return nil, rep, errors.New("training: every record failed validation")
	}

	trainIdx, testIdx := classifier.HoldoutSplit(len(X), opts.TestFraction, opts.Seed)
	pick := func(idx []int) ([][]float64, []int) {
		xs := make([][]float64, len(idx))
		ys := make([]int, len(idx))
		for i, j := range idx {
			xs[i], ys[i] = X[j], y[j]
		}
		return xs, ys
	}
	trainX, trainY := pick(trainIdx)
	testX, testY := pick(testIdx)
	rep.TrainRows, rep.TestRows = len(trainX), len(testX)

	params, err := scaler.Fit(opts.Schema.Names(), trainX)
	if err != nil {
		return nil, rep, fmt.Errorf("training: %w", err)
	}
	params.RunID = opts.RunID

	scaledTrain, err := params.TransformAll(trainX)
	if err != nil {
		return nil, rep, err
	}
	forest, err := classifier.Train(opts.Schema.Names(), scaledTrain, trainY, len(severity.Tiers()), opts.Forest)
	if err != nil {
		return nil, rep, fmt.Errorf("training: %w", err)
	}
	forest.RunID = opts.RunID

	if len(testX) > 0 {
		scaledTest, err := params.TransformAll(testX)
		if err != nil {
			return nil, rep, err
		}
		if rep.Accuracy, err = classifier.Accuracy(forest, scaledTest, testY); err != nil {
			return nil, rep, err
		}
	}

	b := &artifact.Bundle{
		RunID:  opts.RunID,
		Schema: opts.Schema,
		Vocab:  set,
		Scaler: params,
		Model:  forest,
	}
	if err := b.Check(); err != nil {
		return nil, rep, err
	}
	return b, rep, nil
}
