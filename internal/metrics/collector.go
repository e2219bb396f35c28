// Package metrics collects labelled samples in memory and summarizes them
// into count, mean and percentile aggregations.
package metrics

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// Point is one recorded sample.
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Aggregation summarizes a set of samples.
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summary is a snapshot of every metric, aggregated per label set.
// The label key of an unlabelled series is "".
type Summary struct {
	StartTime time.Time                          `json:"start_time"`
	UptimeMs  int64                              `json:"uptime_ms"`
	Metrics   map[string]map[string]*Aggregation `json:"metrics"`
}

// Collector collects time-series metrics
type Collector struct {
	mu sync.RWMutex

	startTime time.Time

	// metric name -> label key -> points
	timeSeries map[string]map[string][]Point
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:  time.Now(),
		timeSeries: make(map[string]map[string][]Point),
	}
}

// Record records a metric value at a specific timestamp
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]Point)
	}
	c.timeSeries[name][key] = append(c.timeSeries[name][key], Point{
		Timestamp: timestamp,
		Value:     value,
		Labels:    copyLabels(labels),
	})
}

// RecordNow records a metric value at the current time
func (c *Collector) RecordNow(name string, value float64, labels map[string]string) {
	c.Record(name, value, time.Now(), labels)
}

// GetTimeSeries returns a copy of the points recorded under exactly these labels
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.timeSeries[name][labelKey(labels)]
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Timestamp: p.Timestamp, Value: p.Value, Labels: copyLabels(p.Labels)}
	}
	return out
}

// GetAggregation aggregates the points recorded under exactly these labels
func (c *Collector) GetAggregation(name string, labels map[string]string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return aggregatePoints(c.timeSeries[name][labelKey(labels)])
}

// GetTotalAggregation aggregates a metric across all label sets
func (c *Collector) GetTotalAggregation(name string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var values []float64
	for _, points := range c.timeSeries[name] {
		for _, p := range points {
			values = append(values, p.Value)
		}
	}
	return Aggregate(values)
}

// GetMetricNames returns the collected metric names in sorted order
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.timeSeries))
	for name := range c.timeSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSummary aggregates every metric per label set
func (c *Collector) GetSummary() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := &Summary{
		StartTime: c.startTime,
		UptimeMs:  time.Since(c.startTime).Milliseconds(),
		Metrics:   make(map[string]map[string]*Aggregation, len(c.timeSeries)),
	}
	for name, byLabels := range c.timeSeries {
		aggs := make(map[string]*Aggregation, len(byLabels))
		for key, points := range byLabels {
			if agg := aggregatePoints(points); agg != nil {
				aggs[key] = agg
			}
		}
		summary.Metrics[name] = aggs
	}
	return summary
}

// Clear drops all collected metrics
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeSeries = make(map[string]map[string][]Point)
	c.startTime = time.Now()
}

// labelKey creates a key from labels for map lookup: sorted k=v pairs joined by commas
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k + "=" + labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func aggregatePoints(points []Point) *Aggregation {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return Aggregate(values)
}

// Aggregate summarizes values, or returns nil when there are none.
func Aggregate(values []float64) *Aggregation {
	if len(values) == 0 {
		return nil
	}
	sorted := slices.Clone(values)
	sort.Float64s(sorted)

	sum := utils.Sum(sorted)
	return &Aggregation{
		Count: int64(len(sorted)),
		Sum:   sum,
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
		P50:   calculatePercentile(sorted, 0.50),
		P95:   calculatePercentile(sorted, 0.95),
		P99:   calculatePercentile(sorted, 0.99),
	}
}

// calculatePercentile linearly interpolates the p-th percentile of a sorted slice
func calculatePercentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0.0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	index := p * float64(len(sortedValues)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return sortedValues[len(sortedValues)-1]
	}

	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}
