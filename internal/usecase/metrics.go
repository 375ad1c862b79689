package usecase

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"
)

// Singer metric names and types.
const (
	metricRecordCount  = "record_count"
	metricSyncDuration = "sync_duration"
	metricCounter      = "counter"
	metricTimer        = "timer"
)

type metricPoint struct {
	Type   string         `json:"type"`
	Metric string         `json:"metric"`
	Value  any            `json:"value"`
	Tags   map[string]any `json:"tags"`
}

// streamMetrics tracks one stream's progress.
type streamMetrics struct {
	stream  string
	started time.Time
	records int
	sizes   []float64
}

func newStreamMetrics(stream string, now time.Time) *streamMetrics {
	return &streamMetrics{stream: stream, started: now}
}

// observe counts a record of n serialized bytes; n is zero for batched records.
func (m *streamMetrics) observe(n int) {
	m.records++
	if n > 0 {
		m.sizes = append(m.sizes, float64(n))
	}
}

func (m *streamMetrics) report(logger *slog.Logger, now time.Time, status string) {
	tags := map[string]any{"stream": m.stream}
	logMetric(logger, metricPoint{Type: metricCounter, Metric: metricRecordCount, Value: m.records, Tags: tags})
	logMetric(logger, metricPoint{
		Type:   metricTimer,
		Metric: metricSyncDuration,
		Value:  now.Sub(m.started).Seconds(),
		Tags:   map[string]any{"stream": m.stream, "status": status},
	})

	if len(m.sizes) == 0 {
		return
	}
	data := stats.Float64Data(m.sizes)
	mean, _ := data.Mean()
	median, _ := data.Median()
	p95, _ := data.Percentile(95)
	maxSize, _ := data.Max()
	logger.Info("Record size summary",
		"stream", m.stream,
		"records", len(m.sizes),
		"mean_bytes", mean,
		"median_bytes", median,
		"p95_bytes", p95,
		"max_bytes", maxSize,
	)
}

// logMetric writes a Singer SDK style "METRIC: {...}" line.
func logMetric(logger *slog.Logger, p metricPoint) {
	b, err := json.Marshal(p)
	if err != nil {
		logger.Warn("failed to encode metric", "metric", p.Metric, "error", err)
		return
	}
	logger.Info("METRIC: " + string(b))
}
