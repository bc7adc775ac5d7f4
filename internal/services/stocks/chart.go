package stocks

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/levfolio/levfolio/internal/models"
)

// RenderChartPNG renders a close-price line chart for a symbol over the
// requested range. The series is resolved through the normal pipeline, so a
// cold cache triggers the same provider escalation as a data request.
func (s *Service) RenderChartPNG(ctx context.Context, ticker string, timeRange models.TimeRange) ([]byte, error) {
	sd, err := s.GetStock(ctx, ticker, timeRange, false)
	if err != nil {
		return nil, err
	}
	if sd.DataSource == models.SourceError || len(sd.ChartData.Close) < 2 {
		return nil, fmt.Errorf("not enough data to chart %s (%d points)", ticker, len(sd.ChartData.Close))
	}

	cd := sd.ChartData
	xValues := make([]time.Time, len(cd.Labels))
	for i, label := range cd.Labels {
		d, perr := time.Parse("2006-01-02", label)
		if perr != nil {
			return nil, fmt.Errorf("bad chart label %q: %w", label, perr)
		}
		xValues[i] = d
	}

	closeSeries := chart.TimeSeries{
		Name: sd.Symbol,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: cd.Close,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s — %s", sd.Symbol, timeRange),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
