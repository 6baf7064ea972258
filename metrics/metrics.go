// Package metrics defines the instrumentation contract for devicegate.
package metrics

import "time"

// Recorder counts events and observes operation latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
