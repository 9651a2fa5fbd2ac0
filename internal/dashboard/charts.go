package dashboard

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

func countBars(counts []Count) ([]string, []opts.BarData) {
	x := make([]string, len(counts))
	y := make([]opts.BarData, len(counts))
	for i, c := range counts {
		x[i] = c.Label
		y[i] = opts.BarData{Value: c.Value}
	}
	return x, y
}

func barChart(title, subtitle string, counts []Count) *charts.Bar {
	x, y := countBars(counts)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries(title, y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func timePie(counts []Count) *charts.Pie {
	items := make([]opts.PieData, len(counts))
	for i, c := range counts {
		items[i] = opts.PieData{Name: c.Label, Value: c.Value}
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Accidents by time of day"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("time", items, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}))
	return pie
}

// roadWeatherBar stacks one series per weather condition over road conditions.
func roadWeatherBar(rows []RoadWeatherCount) *charts.Bar {
	roadSet := map[string]int{}
	weatherSet := map[string]bool{}
	for _, r := range rows {
		roadSet[r.Road] = 0
		weatherSet[r.Weather] = true
	}
	roads := make([]string, 0, len(roadSet))
	for road := range roadSet {
		roads = append(roads, road)
	}
	sort.Strings(roads)
	for i, road := range roads {
		roadSet[road] = i
	}
	weathers := make([]string, 0, len(weatherSet))
	for w := range weatherSet {
		weathers = append(weathers, w)
	}
	sort.Strings(weathers)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Accidents by road and weather"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
	)
	bar.SetXAxis(roads)
	for _, weather := range weathers {
		totals := make([]int, len(roads))
		for _, r := range rows {
			if r.Weather == weather {
				totals[roadSet[r.Road]] += r.Count
			}
		}
		data := make([]opts.BarData, len(totals))
		for i, n := range totals {
			data[i] = opts.BarData{Value: n}
		}
		bar.AddSeries(weather, data, charts.WithBarChartOpts(opts.BarChart{Stack: "weather"}))
	}
	return bar
}

// RenderPage writes the dashboard as a standalone echarts HTML page.
func RenderPage(w io.Writer, s Summary) error {
	page := components.NewPage()
	page.PageTitle = "Ghat road accident dashboard"
	page.AddCharts(
		barChart("Casualties by location", fmt.Sprintf("%d accidents", s.Records), s.CasualtiesByLocation),
		timePie(s.AccidentsByTime),
		barChart("Severity distribution", "Low 0-2, Medium 3-6, High 7+", s.Severity),
		roadWeatherBar(s.RoadWeather),
	)
	return page.Render(w)
}
