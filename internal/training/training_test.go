package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
)

func init() {
	monitoring.SetLogger(nil)
}

func records() []dataset.Record {
	var out []dataset.Record
	weathers := []string{"Clear", "Rainy"}
	for i := 0; i < 40; i++ {
		w := i % 2
		out = append(out, dataset.Record{
			Location:   []string{"Rohtang Pass", "Kasara Ghat"}[i%2],
			Time:       "02:15:00 PM",
			Weather:    weathers[w],
			Road:       "Wet",
			Vehicles:   1 + i%4,
			Casualties: w * 8,
		})
	}
	return out
}

func TestFit(t *testing.T) {
	b, rep, err := Fit(records(), Options{
		RunID:  "r1",
		Seed:   42,
		Forest: classifier.TrainOptions{Trees: 5},
	})
	require.NoError(t, err)
	require.NoError(t, b.Check())

	assert.Equal(t, "r1", b.RunID)
	assert.Equal(t, features.Base.Names(), b.Scaler.Fields)
	assert.Equal(t, features.Base.Names(), b.Model.Fields())
	assert.Equal(t, "r1", b.Vocab.Weather.RunID())
	assert.Equal(t, []string{"Clear", "Rainy"}, b.Vocab.Weather.Values())

	assert.Equal(t, 40, rep.Rows)
	assert.Equal(t, 32, rep.TrainRows)
	assert.Equal(t, 8, rep.TestRows)
	assert.Equal(t, [3]int{20, 0, 20}, rep.ClassCounts)
	assert.Equal(t, 1.0, rep.Accuracy)
}

func TestFit_GeneratesRunID(t *testing.T) {
	b, rep, err := Fit(records(), Options{Forest: classifier.TrainOptions{Trees: 2}})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, rep.RunID, b.RunID)
	assert.Equal(t, "base", rep.Schema)
}

func TestFit_GeometrySchema(t *testing.T) {
	recs := records()
	b, _, err := Fit(recs, Options{
		Schema:   features.Geometry,
		Geometry: dataset.NewGeometryTable(recs),
		Forest:   classifier.TrainOptions{Trees: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, features.Geometry.Names(), b.Scaler.Fields)
}

func TestFit_SkipsInvalidRows(t *testing.T) {
	recs := records()
	recs[0].Vehicles = 0
	recs[1].Vehicles = 500
	_, rep, err := Fit(recs, Options{Forest: classifier.TrainOptions{Trees: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 38, rep.Rows)
}

func TestFit_Errors(t *testing.T) {
	_, _, err := Fit(nil, Options{})
	assert.Error(t, err)

	_, _, err = Fit([]dataset.Record{{Location: "A", Weather: "B", Road: "C", Vehicles: 0}}, Options{})
	assert.Error(t, err)

	_, _, err = Fit([]dataset.Record{{Location: "", Weather: "B", Road: "C", Vehicles: 1}}, Options{})
	assert.ErrorIs(t, err, vocab.ErrEmpty)
}
