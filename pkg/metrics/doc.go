/*
Package metrics registers the Prometheus metrics shared by Warden's three
services and exposes them on a /metrics endpoint via Handler.

	mux.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	// ... run the batched witness refresh ...
	timer.ObserveDuration(metrics.WitnessRefreshDuration)
*/
package metrics
