package report

import (
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth    = 2000
	chartHeight   = 512
	chartBarWidth = 120
)

func MakePerformanceResultChart(result PerformanceBenchResult) (chart.BarChart, error) {
	graph := newBarChart(result.Kind.String(), "ns per op")

	for _, system := range result.Systems {
		addBar(&graph, system.SystemName, system.NsOp)
	}

	return graph, nil
}

// MakeMedianChart plots the median of the column for every system which
// measured it.
func MakeMedianChart(suite SuiteResults, column string) (chart.BarChart, error) {
	graph := newBarChart(suite.Suite+" "+column, "median [ms]")

	for _, system := range suite.Systems {
		summary, ok := system.Column(column)
		if !ok {
			continue
		}
		addBar(&graph, system.System, summary.Median)
	}

	return graph, nil
}

func newBarChart(title, yAxisName string) chart.BarChart {
	return chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{
				Top: 40,
			},
		},
		Height:   chartHeight,
		BarWidth: chartBarWidth,
		Width:    chartWidth,
		YAxis: chart.YAxis{
			Name: yAxisName,
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: 1,
			},
		},
	}
}

func addBar(graph *chart.BarChart, label string, value float64) {
	graph.Bars = append(graph.Bars, chart.Value{
		Label: label,
		Value: value,
	})

	if v := value * 1.1; v > graph.YAxis.Range.GetMax() {
		graph.YAxis.Range.SetMax(v)
	}
}
