// Package clock provides the monotonic time source used to time tests.
package clock

import "time"

// Clock returns monotonic nanosecond timestamps. It exists so the scheduler
// can be driven by a fake clock in tests instead of wall time.
type Clock interface {
	NowNS() int64
}

// System is the production Clock backed by time.Now's monotonic reading.
type System struct{}

// epoch anchors System's readings; time.Since measures against its
// monotonic reading, so wall-clock adjustments do not affect NowNS.
var epoch = time.Now()

// NowNS returns the current monotonic time in nanoseconds since an
// unspecified epoch. Only differences between two calls are meaningful.
func (System) NowNS() int64 {
	return int64(time.Since(epoch))
}

// Millis converts a nanosecond duration to whole milliseconds, matching the
// integer millisecond display used in every live and footer line.
func Millis(ns int64) int64 {
	return ns / int64(time.Millisecond)
}
