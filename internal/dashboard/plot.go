package dashboard

import (
	"errors"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var severityColors = []color.Color{
	color.RGBA{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
	color.RGBA{R: 0xff, G: 0x98, B: 0x00, A: 0xff},
	color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
}

// WriteSeverityPNG renders the severity distribution as a PNG bar chart.
func WriteSeverityPNG(w io.Writer, s Summary) error {
	if len(s.Severity) == 0 {
		return errors.New("no severity data")
	}
	p := plot.New()
	p.Title.Text = "Accident severity"
	p.Y.Label.Text = "Accidents"
	p.Y.Min = 0

	names := make([]string, len(s.Severity))
	width := vg.Points(40)
	for i, c := range s.Severity {
		names[i] = c.Label
		// One single-value bar per tier so each can carry its own colour.
		values := make(plotter.Values, len(s.Severity))
		values[i] = c.Value
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = severityColors[i%len(severityColors)]
		p.Add(bars)
	}
	p.NominalX(names...)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
