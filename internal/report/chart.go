package report

import (
	"errors"
	"fmt"
	"math"

	"github.com/vicanso/go-charts/v2"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Chart dimensions in pixels
const (
	DefaultWidth  = 1000
	DefaultHeight = 560
)

// ErrNoRecords is returned when there is nothing to draw
var ErrNoRecords = errors.New("no return records")

// ChartOptions configures RenderChart
type ChartOptions struct {
	Title    string
	Subtitle string
	Width    int
	Height   int
}

// RenderChart draws cumulative returns in percent as a PNG, one line for the
// portfolio and one per benchmark.
func RenderChart(records []contracts.ReturnRecord, opts ChartOptions) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Title == "" {
		opts.Title = "Cumulative return"
	}

	names, values := percentSeries(records)
	xLabels := make([]string, len(records))
	for i, r := range records {
		xLabels[i] = r.Date.Format(contracts.DateLayout)
	}

	yMin, yMax := paddedRange(values)

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	painter, err := charts.Render(
		charts.ChartOption{
			SeriesList: seriesList,
			Width:      opts.Width,
			Height:     opts.Height,
		},
		charts.TitleTextOptionFunc(opts.Title, opts.Subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNumber(len(xLabels)),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
			Formatter:   "{value}%",
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// percentSeries returns entity names and their values in percent, portfolio first.
// A benchmark missing from a record is drawn as zero.
func percentSeries(records []contracts.ReturnRecord) ([]string, [][]float64) {
	benchmarks := contracts.BenchmarkNames(records)
	names := append([]string{contracts.PortfolioEntity}, benchmarks...)

	values := make([][]float64, len(names))
	for i := range values {
		values[i] = make([]float64, len(records))
	}

	for j, r := range records {
		values[0][j] = round2(r.PortfolioReturn * 100)
		for i, b := range benchmarks {
			values[i+1][j] = round2(r.Benchmarks[b] * 100)
		}
	}
	return names, values
}

func paddedRange(values [][]float64) (float64, float64) {
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, series := range values {
		for _, v := range series {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}

	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = 1
	}
	return math.Floor(minVal - padding), math.Ceil(maxVal + padding)
}

func splitNumber(points int) int {
	if points <= 30 {
		n := points / 3
		if n < 3 {
			n = 3
		}
		return n
	}
	return 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
