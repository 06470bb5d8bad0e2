package metrics

import (
	"context"
	"time"
)

type timingKey struct{}

type timingScope struct {
	start time.Time
	route string
}

// StartTiming stashes a start time and route label into ctx so a later
// ReportTimingFromCtx call can compute elapsed time without threading a
// `time.Time` through every handler signature.
func StartTiming(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, timingKey{}, &timingScope{start: time.Now(), route: route})
}

// ReportTimingFromCtx reports the elapsed time since StartTiming was called
// on ctx, tagged with typ (e.g. "handler") and the route, and with a
// "failed" tag when err != nil.
func ReportTimingFromCtx(ctx context.Context, reporters []Reporter, typ string, err error) {
	if ctx == nil {
		return
	}
	scope, ok := ctx.Value(timingKey{}).(*timingScope)
	if !ok {
		return
	}
	elapsedMs := float64(time.Since(scope.start)) / float64(time.Millisecond)
	tags := map[string]string{
		"type":   typ,
		"route":  scope.route,
		"failed": "false",
	}
	if err != nil {
		tags["failed"] = "true"
	}
	reportAll(reporters, ResponseTime, tags, elapsedMs, Reporter.ReportSummary)
}
