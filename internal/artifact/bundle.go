package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/scaler"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
)

// ErrMismatch is returned when the artifacts in a store were not produced
// by the same training run or disagree on the feature schema.
var ErrMismatch = errors.New("artifacts do not belong together")

// Bundle is the read-only fitted state the prediction path runs on. It is
// always replaced as a whole, never edited.
type Bundle struct {
	RunID  string
	Schema features.Schema
	Vocab  vocab.Set
	Scaler *scaler.Params
	Model  classifier.Classifier
}

// Check verifies the pieces of b agree with each other and with its schema.
func (b *Bundle) Check() error {
	if b.Scaler == nil || b.Model == nil {
		return fmt.Errorf("%w: bundle incomplete", ErrArtifactMissing)
	}
	for _, f := range vocab.Features() {
		v, err := b.Vocab.Get(f)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArtifactMissing, err)
		}
		if v.Feature() != f {
			return fmt.Errorf("%w: %s vocabulary is for feature %q", ErrMismatch, f, v.Feature())
		}
	}
	if err := b.Scaler.Validate(); err != nil {
		return err
	}
	if err := b.Schema.Check(b.Scaler.Fields); err != nil {
		return fmt.Errorf("%w: scaler: %v", ErrMismatch, err)
	}
	if !slices.Equal(b.Scaler.Fields, b.Model.Fields()) {
		return fmt.Errorf("%w: scaler fields %v, model fields %v", ErrMismatch, b.Scaler.Fields, b.Model.Fields())
	}
	ids := map[string]string{
		LocationVocab: b.Vocab.Location.RunID(),
		WeatherVocab:  b.Vocab.Weather.RunID(),
		RoadVocab:     b.Vocab.Road.RunID(),
		ScalerParams:  b.Scaler.RunID,
	}
	if f, ok := b.Model.(*classifier.Forest); ok {
		ids[Model] = f.RunID
	}
	for name, id := range ids {
		if id != b.RunID {
			return fmt.Errorf("%w: %s has run_id %q, expected %q", ErrMismatch, name, id, b.RunID)
		}
	}
	return nil
}

// LoadBundle reads all artifacts from store concurrently and assembles a
// checked bundle for schema. Any missing artifact fails the whole load.
func LoadBundle(store Store, schema features.Schema) (*Bundle, error) {
	var (
		g        errgroup.Group
		location vocab.Vocabulary
		weather  vocab.Vocabulary
		road     vocab.Vocabulary
		params   scaler.Params
		model    *classifier.Forest
	)
	decode := func(name string, into any) func() error {
		return func() error {
			data, err := store.Load(name)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, into); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			return nil
		}
	}
	g.Go(decode(LocationVocab, &location))
	g.Go(decode(WeatherVocab, &weather))
	g.Go(decode(RoadVocab, &road))
	g.Go(decode(ScalerParams, &params))
	g.Go(func() error {
		data, err := store.Load(Model)
		if err != nil {
			return err
		}
		model, err = classifier.Load(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", Model, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &Bundle{
		RunID:  params.RunID,
		Schema: schema,
		Vocab:  vocab.Set{Location: &location, Weather: &weather, Road: &road},
		Scaler: &params,
		Model:  model,
	}
	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveBundle writes every artifact of b to store. The model must encode to
// JSON.
func SaveBundle(store Store, b *Bundle) error {
	if err := b.Check(); err != nil {
		return err
	}
	items := []struct {
		name string
		v    any
	}{
		{LocationVocab, b.Vocab.Location},
		{WeatherVocab, b.Vocab.Weather},
		{RoadVocab, b.Vocab.Road},
		{ScalerParams, b.Scaler},
		{Model, b.Model},
	}
	for _, it := range items {
		data, err := json.MarshalIndent(it.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", it.name, err)
		}
		if err := store.Save(it.name, data); err != nil {
			return err
		}
	}
	return nil
}
