package metrics

// ChartData represents data for Chart.js charts.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset represents a Chart.js dataset.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
}

var statusColors = map[string]string{
	"available":      "#00E396",
	"downloading":    "#008FFB",
	"not_downloaded": "#FEB019",
	"failed":         "#FF4560",
}

var colorPalette = []string{
	"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF",
	"#FF9F40", "#C9CBCF",
}

// StatusChartData converts the status distribution to chart format.
func (o *Overview) StatusChartData() *ChartData {
	return chart("Tracks by Status", o.StatusDistribution, func(i int, key string) string {
		if c, ok := statusColors[key]; ok {
			return c
		}
		return colorPalette[i%len(colorPalette)]
	})
}

// FailureChartData converts the ledger reasons to chart format.
func (o *Overview) FailureChartData() *ChartData {
	return chart("Failed Tracks by Reason", o.FailureReasons, func(i int, _ string) string {
		return colorPalette[i%len(colorPalette)]
	})
}

func chart(label string, metrics []Metric, color func(int, string) string) *ChartData {
	labels := make([]string, len(metrics))
	data := make([]float64, len(metrics))
	colors := make([]string, len(metrics))
	for i, m := range metrics {
		labels[i] = m.Key
		data[i] = float64(m.Value)
		colors[i] = color(i, m.Key)
	}
	return &ChartData{
		Labels: labels,
		Datasets: []Dataset{{
			Label:           label,
			Data:            data,
			BackgroundColor: colors,
		}},
	}
}
