// Package metrics exposes the counter/gauge API used throughout linkmux.
// Call sites address metrics by (group, name) plus optional dimensions;
// the backing store is a Prometheus registry.
package metrics

// Policy defines the aggregation policy for metric values.
type Policy int

const (
	PolicyNone      Policy = iota // No specific policy specified
	PolicySet                     // Instantaneous value - last value wins
	PolicySum                     // Sum of all values
	PolicyAvg                     // Average of all values
	PolicyMax                     // Maximum value
	PolicyMin                     // Minimum value
	PolicyStopwatch               // Timer - measures duration
	PolicyHistogram               // Histogram statistics
)

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs, such as
// pipeline name, rejection reason, or driver type.
type Dimension map[string]string
