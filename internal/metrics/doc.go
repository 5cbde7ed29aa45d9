// Package metrics defines all Prometheus metrics for the media optimizer.
//
// Metrics are registered via promauto at package init and exposed through
// the /metrics endpoint on the metrics port. InitializeMetrics should be
// called once at startup to pre-populate expected label combinations.
package metrics
