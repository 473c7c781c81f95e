// Package metrics wraps go-metrics counters and meters shared by the
// server components.
package metrics

import (
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

var reg = gometrics.DefaultRegistry

// Incr increments a counter.
func Incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Inc(i)
}

// Decr decrements a counter.
func Decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Dec(i)
}

// Mark marks a meter event.
func Mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, reg).Mark(i)
}

// Count reads a counter back, mainly for tests and the status endpoint.
func Count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, reg).Count()
}

// StartReporter periodically writes the registry as JSON to w until the
// process exits.
func StartReporter(w io.Writer, tick time.Duration) {
	go gometrics.WriteJSON(reg, tick, w)
}
